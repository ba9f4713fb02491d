package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/examintel/internal/adapters/repository"
	service "github.com/okian/examintel/internal/app"
	"github.com/okian/examintel/internal/config"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// stubRetriever answers every subject with one hard paper on Trees.
type stubRetriever struct {
	calls atomic.Int64
	err   error
}

func (s *stubRetriever) Retrieve(_ context.Context, subject, _ string, _ int) ([]model.RetrievalHit, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []model.RetrievalHit{{
		Text:  "Construct an AVL tree.",
		Score: 0.9,
		Papers: []model.PaperReference{
			{Subject: subject, Year: 2023, Difficulty: model.DifficultyHard, Topics: []string{"Trees"}},
		},
	}}, nil
}

func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.WorkerCount = 2
	cfg.QueueSize = 8
	return cfg
}

func sampleAssessment(id string) *model.Assessment {
	return &model.Assessment{
		ID: id,
		Subjects: []model.SubjectAssessment{{
			Name:   "Data Structures",
			Topics: []model.GapEntry{model.NewGapEntry("Data Structures", "Trees", 1)},
		}},
		OverallConfidence: 1,
		TotalHours:        6,
		Days:              3,
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a service that was not started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then operations report it", func() {
			_, err := svc.GeneratePlan(ctx, sampleAssessment("a-1"))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Plan(ctx, "p")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.SeenAndRecord(ctx, "a-1"), ShouldBeFalse)
			So(svc.Size(), ShouldEqual, 0)
		})

		Convey("Then stats only carry static fields", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["store_driver"], ShouldEqual, config.StoreMemory)
			_, ok := stats["queue_length"]
			So(ok, ShouldBeFalse)
		})

		Convey("Then Stop is a no-op", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given an invalid configuration", t, func() {
		cfg := testConfig()
		cfg.StoreDriver = "sqlite"
		svc := service.New(service.WithConfig(cfg))

		Convey("Then Start fails with the config kind", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})

	Convey("Given a service with a retriever", t, func() {
		ctx := context.Background()
		retriever := &stubRetriever{}
		svc := service.New(
			service.WithConfig(testConfig()),
			service.WithRetriever(retriever),
			service.WithClock(clock),
		)
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When generating a plan", func() {
			plan, err := svc.GeneratePlan(ctx, sampleAssessment("a-1"))
			So(err, ShouldBeNil)

			Convey("Then it is built from retrieval hits and stored", func() {
				So(retriever.calls.Load(), ShouldEqual, 1)
				So(plan.ID, ShouldNotBeBlank)
				So(plan.GeneratedAt.Equal(fixedNow), ShouldBeTrue)
				So(plan.Summary.DegradedSubjects, ShouldBeEmpty)
				So(plan.Topics[0].Topic, ShouldEqual, "Trees")
				So(plan.Topics[0].Fallback, ShouldBeFalse)
				So(plan.Schedule[0].Date.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)

				stored, err := svc.Plan(ctx, plan.ID)
				So(err, ShouldBeNil)
				So(stored.AssessmentID, ShouldEqual, "a-1")

				latest, err := svc.LatestPlan(ctx, "a-1")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, plan.ID)
			})

			Convey("And stats reflect the stored plan", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["plans_stored"], ShouldEqual, 1)
				So(stats["worker_count"], ShouldEqual, 2)
				So(stats["queue_capacity"], ShouldEqual, 8)
				So(stats["retrieval"], ShouldEqual, true)
			})
		})

		Convey("When the plan is unknown", func() {
			_, err := svc.Plan(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the assessment is invalid", func() {
			_, err := svc.GeneratePlan(ctx, &model.Assessment{ID: "a-2"})
			So(errors.Is(err, model.ErrNoSubjects), ShouldBeTrue)
		})
	})
}

func TestService_RetrievalWiring(t *testing.T) {
	Convey("Given no retrieval url", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithConfig(testConfig()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then every subject degrades to fallback topics", func() {
			plan, err := svc.GeneratePlan(ctx, sampleAssessment("a-3"))
			So(err, ShouldBeNil)
			So(plan.Summary.DegradedSubjects, ShouldResemble, []string{"Data Structures"})
			So(plan.Topics[0].Fallback, ShouldBeTrue)
			So(svc.GetStats()["retrieval"], ShouldEqual, false)
		})
	})

	Convey("Given a retrieval proxy and an unreachable cache", t, func() {
		ctx := context.Background()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"results": [{"text": "Define a heap.", "score": 0.7,
				"metadata": {"papers": [{"subject": "Data Structures", "year": 2022, "difficulty": "easy", "topics": ["Heaps"]}]}}]}`))
		}))
		defer srv.Close()

		cfg := testConfig()
		cfg.RetrievalURL = srv.URL
		cfg.CacheEnabled = true
		cfg.RedisAddr = "127.0.0.1:1"
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then plans use the proxy and run uncached", func() {
			plan, err := svc.GeneratePlan(ctx, sampleAssessment("a-4"))
			So(err, ShouldBeNil)
			So(plan.Summary.DegradedSubjects, ShouldBeEmpty)
			So(plan.Topics[0].Topic, ShouldEqual, "Heaps")
			So(plan.Topics[0].AvgValue, ShouldEqual, float64(model.MarksEasy))
			So(svc.GetStats()["cache"], ShouldEqual, false)
		})
	})
}

func TestService_Restart(t *testing.T) {
	Convey("Given a service that built its own store", t, func() {
		ctx := context.Background()
		retriever := &stubRetriever{}
		svc := service.New(
			service.WithConfig(testConfig()),
			service.WithRetriever(retriever),
			service.WithClock(clock),
		)
		So(svc.Start(ctx), ShouldBeNil)
		first, err := svc.GeneratePlan(ctx, sampleAssessment("a-r1"))
		So(err, ShouldBeNil)

		Convey("When it is stopped and started again", func() {
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			Convey("Then a fresh store replaces the closed one", func() {
				_, err := svc.Plan(ctx, first.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(svc.GetStats()["plans_stored"], ShouldEqual, 0)

				second, err := svc.GeneratePlan(ctx, sampleAssessment("a-r2"))
				So(err, ShouldBeNil)
				stored, err := svc.Plan(ctx, second.ID)
				So(err, ShouldBeNil)
				So(stored.AssessmentID, ShouldEqual, "a-r2")
			})

			Convey("Then the injected retriever is kept", func() {
				plan, err := svc.GeneratePlan(ctx, sampleAssessment("a-r3"))
				So(err, ShouldBeNil)
				So(plan.Summary.DegradedSubjects, ShouldBeEmpty)
				So(retriever.calls.Load(), ShouldEqual, 2)
				So(svc.GetStats()["retrieval"], ShouldEqual, true)
			})
		})
	})
}
