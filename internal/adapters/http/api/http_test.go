package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/examintel/internal/adapters/http/api"
	"github.com/okian/examintel/internal/adapters/mq/queue"
	"github.com/okian/examintel/internal/adapters/repository"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDependencies struct {
	mu         sync.Mutex
	plans      map[string]*model.Plan
	latest     map[string]*model.Plan
	seen       map[string]bool
	jobs       []queue.Job
	last       *model.Assessment
	genErr     error
	enqueueErr error
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		plans:  make(map[string]*model.Plan),
		latest: make(map[string]*model.Plan),
		seen:   make(map[string]bool),
	}
}

func (m *mockDependencies) GeneratePlan(_ context.Context, a *model.Assessment) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = a
	if m.genErr != nil {
		return nil, m.genErr
	}
	p := &model.Plan{
		ID:           "plan-" + a.ID,
		AssessmentID: a.ID,
		Summary:      model.Summary{SubjectCount: len(a.Subjects)},
	}
	m.plans[p.ID] = p
	m.latest[a.ID] = p
	return p, nil
}

func (m *mockDependencies) Plan(_ context.Context, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plans[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("plan %q: %w", id, repository.ErrNotFound)
}

func (m *mockDependencies) LatestPlan(_ context.Context, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.latest[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockDependencies) SeenAndRecord(_ context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDependencies) Unrecord(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
}

func (m *mockDependencies) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.seen))
}

func (m *mockDependencies) Enqueue(_ context.Context, job queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

const assessmentBody = `{
  "id": "a-1",
  "subjects": [{"name": "Physics", "topics": [{"subject": "Physics", "topic": "Optics", "gap_score": 4, "confidence": 1}]}],
  "overall_confidence": 1,
  "total_hours": 10,
  "days": 5
}`

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestCreatePlan(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When posting an assessment", func() {
			w := do(mux, http.MethodPost, "/plans", assessmentBody)

			Convey("Then the stored plan is returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get("Location"), ShouldEqual, "/plans/plan-a-1")
				var plan model.Plan
				So(json.Unmarshal(w.Body.Bytes(), &plan), ShouldBeNil)
				So(plan.AssessmentID, ShouldEqual, "a-1")
				So(plan.Summary.SubjectCount, ShouldEqual, 1)
			})
		})

		Convey("When posting raw answers without an id", func() {
			body := `{"answers": [
				{"subject": "Maths", "topic": "Algebra", "confidence": 1},
				{"subject": "Maths", "topic": "Algebra", "confidence": 3},
				{"subject": "Chemistry", "topic": "Bonding", "confidence": 4}
			], "total_hours": 6, "days": 3}`
			w := do(mux, http.MethodPost, "/plans", body)

			Convey("Then the gap model is built and an id assigned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				a := deps.last
				So(a, ShouldNotBeNil)
				So(a.ID, ShouldNotBeBlank)
				So(len(a.Subjects), ShouldEqual, 2)
				So(a.Subjects[0].Topics[0].Confidence, ShouldEqual, 2)
				So(a.Subjects[0].Topics[0].QuestionCount, ShouldEqual, 2)
				So(a.OverallConfidence, ShouldAlmostEqual, 8.0/3.0, 1e-9)
				So(a.WeakAreas, ShouldEqual, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/plans", "{")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
				So(deps.last, ShouldBeNil)
			})
		})

		Convey("When the assessment has no subjects", func() {
			w := do(mux, http.MethodPost, "/plans", `{"id": "a-2", "total_hours": 4, "days": 2}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["message"], ShouldContainSubstring, model.ErrNoSubjects.Error())
			})
		})

		Convey("When an answer is out of range", func() {
			w := do(mux, http.MethodPost, "/plans", `{"answers": [{"subject": "Maths", "topic": "x", "confidence": 7}]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a subject topic is rated outside the scale", func() {
			w := do(mux, http.MethodPost, "/plans", `{"subjects": [{"name": "Physics", "topics": [
				{"subject": "Physics", "topic": "Optics", "gap_score": -2, "confidence": 7}]}],
				"total_hours": 4, "days": 2}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When generation fails unexpectedly", func() {
			deps.genErr = errors.New("store offline")
			w := do(mux, http.MethodPost, "/plans", assessmentBody)

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["code"], ShouldEqual, "internal_error")
			})
		})

		Convey("When generation rejects the input", func() {
			deps.genErr = fmt.Errorf("days: %w", model.ErrInvalidInput)
			w := do(mux, http.MethodPost, "/plans", assessmentBody)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestReadPlans(t *testing.T) {
	Convey("Given a server with one generated plan", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)
		So(do(mux, http.MethodPost, "/plans", assessmentBody).Code, ShouldEqual, http.StatusCreated)

		Convey("When fetching it by id", func() {
			w := do(mux, http.MethodGet, "/plans/plan-a-1", "")

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var plan model.Plan
				So(json.Unmarshal(w.Body.Bytes(), &plan), ShouldBeNil)
				So(plan.ID, ShouldEqual, "plan-a-1")
			})
		})

		Convey("When fetching an unknown id", func() {
			w := do(mux, http.MethodGet, "/plans/nope", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When fetching the latest plan of the assessment", func() {
			w := do(mux, http.MethodGet, "/assessments/a-1/plan", "")

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var plan model.Plan
				So(json.Unmarshal(w.Body.Bytes(), &plan), ShouldBeNil)
				So(plan.AssessmentID, ShouldEqual, "a-1")
			})
		})

		Convey("When the assessment has no plan", func() {
			w := do(mux, http.MethodGet, "/assessments/a-9/plan", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestSubmitJob(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When submitting a job", func() {
			w := do(mux, http.MethodPost, "/plans/jobs", assessmentBody)

			Convey("Then it is accepted and queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var resp map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["status"], ShouldEqual, "accepted")
				So(resp["assessment_id"], ShouldEqual, "a-1")
				So(resp["plan_url"], ShouldEqual, "/assessments/a-1/plan")
				So(resp["job_id"], ShouldNotBeBlank)
				So(len(deps.jobs), ShouldEqual, 1)
				So(deps.jobs[0].Assessment.ID, ShouldEqual, "a-1")
				So(deps.jobs[0].EnqueuedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And submitting the same assessment again is a conflict", func() {
				w2 := do(mux, http.MethodPost, "/plans/jobs", assessmentBody)
				So(w2.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w2)["code"], ShouldEqual, "duplicate")
				So(len(deps.jobs), ShouldEqual, 1)
			})
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = queue.ErrQueueFull
			w := do(mux, http.MethodPost, "/plans/jobs", assessmentBody)

			Convey("Then it is rejected and the id released", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the queue is closed", func() {
			deps.enqueueErr = queue.ErrQueueClosed
			w := do(mux, http.MethodPost, "/plans/jobs", assessmentBody)

			Convey("Then the service is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(deps.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the job body is invalid", func() {
			w := do(mux, http.MethodPost, "/plans/jobs", `{"id": "a-3"}`)

			Convey("Then nothing is recorded", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(newMockDependencies())

		Convey("Then /healthz serves metrics", func() {
			So(do(mux, http.MethodGet, "/plans/x", "").Code, ShouldEqual, http.StatusNotFound)
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("Then /stats serves JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown routes are not found", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given operation errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes both match", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then a bare kind carries no cause", func() {
			err := api.NewKind("api.op", api.ErrDuplicate)
			So(errors.Is(err, api.ErrDuplicate), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: assessment already in flight")
		})

		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("api.op", repository.ErrNotFound), repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
