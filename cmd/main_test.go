package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	app "github.com/okian/examintel/internal/app"
	"github.com/okian/examintel/internal/config"
	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func clearConfigEnv() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func execute(stdin string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

const answersJSON = `{"id": "cli-1", "answers": [
  {"subject": "Data Structures", "topic": "Trees", "confidence": 1},
  {"subject": "Data Structures", "topic": "Graphs", "confidence": 3}
], "total_hours": 6, "days": 3}`

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then it carries every subcommand", func() {
			names := make([]string, 0, len(root.Commands()))
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "serve")
			convey.So(names, convey.ShouldContain, "plan")
			convey.So(names, convey.ShouldContain, "loadgen")
			convey.So(root.PersistentFlags().Lookup("config"), convey.ShouldNotBeNil)
		})
	})
}

func TestPlanCommand(t *testing.T) {
	convey.Convey("Given an assessment file", t, func() {
		clearConfigEnv()
		path := filepath.Join(t.TempDir(), "assessment.json")
		convey.So(os.WriteFile(path, []byte(answersJSON), 0o600), convey.ShouldBeNil)

		convey.Convey("When planning without retrieval", func() {
			out, _, err := execute("", "plan", "--file", path)

			convey.Convey("Then a fallback plan is printed as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				var plan model.Plan
				convey.So(json.Unmarshal([]byte(out), &plan), convey.ShouldBeNil)
				convey.So(plan.AssessmentID, convey.ShouldEqual, "cli-1")
				convey.So(plan.Summary.DegradedSubjects, convey.ShouldResemble, []string{"Data Structures"})
				convey.So(len(plan.Topics), convey.ShouldEqual, 2)
				convey.So(plan.Topics[0].Topic, convey.ShouldEqual, "Trees")
				convey.So(plan.Topics[0].Fallback, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the assessment comes from stdin", func() {
			out, _, err := execute(answersJSON, "plan")

			convey.Convey("Then it is planned the same way", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"assessment_id": "cli-1"`)
			})
		})

		convey.Convey("When the retrieval proxy answers", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"results": [{"text": "Prove a BFS bound.", "score": 0.8,
					"metadata": {"papers": [{"subject": "Data Structures", "year": 2024, "difficulty": "hard", "topics": ["Graphs"]}]}}]}`))
			}))
			defer srv.Close()

			out, _, err := execute("", "plan", "--file", path, "--retrieval-url", srv.URL)

			convey.Convey("Then the plan is built from its hits", func() {
				convey.So(err, convey.ShouldBeNil)
				var plan model.Plan
				convey.So(json.Unmarshal([]byte(out), &plan), convey.ShouldBeNil)
				convey.So(plan.Summary.DegradedSubjects, convey.ShouldBeEmpty)
				convey.So(plan.Topics[0].Topic, convey.ShouldEqual, "Graphs")
				convey.So(plan.Topics[0].Examples[0].Year, convey.ShouldEqual, 2024)
			})
		})

		convey.Convey("When the file is missing", func() {
			_, _, err := execute("", "plan", "--file", filepath.Join(t.TempDir(), "nope.json"))

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "nope.json")
			})
		})

		convey.Convey("When the assessment has no subjects", func() {
			_, _, err := execute(`{"id": "x", "total_hours": 2, "days": 1}`, "plan")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the config file is invalid", func() {
			bad := filepath.Join(t.TempDir(), "bad.yaml")
			convey.So(os.WriteFile(bad, []byte("max_topics: 0\n"), 0o600), convey.ShouldBeNil)
			_, _, err := execute("", "--config", bad, "plan", "--file", path)

			convey.Convey("Then the command fails on config", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "load config")
			})
		})
	})
}

func TestRunServe(t *testing.T) {
	convey.Convey("Given a loaded configuration", t, func() {
		clearConfigEnv()
		convey.So(logger.Init(logger.WithOutput(&bytes.Buffer{})), convey.ShouldBeNil)
		cfg := config.New(context.Background())
		cfg.WorkerCount = 1

		convey.Convey("When the context ends", func() {
			cfg.Addr = "127.0.0.1:0"
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			convey.Convey("Then the server shuts down cleanly", func() {
				convey.So(runServe(ctx, cfg), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the address cannot be bound", func() {
			cfg.Addr = "127.0.0.1:-1"

			convey.Convey("Then the listen error is returned", func() {
				err := runServe(context.Background(), cfg)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "http server")
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the service mux", t, func() {
		convey.So(logger.Init(logger.WithOutput(&bytes.Buffer{})), convey.ShouldBeNil)
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.WorkerCount = 1
		svc := app.New(app.WithConfig(cfg))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(ctx, svc)

		for _, path := range []string{"/", "/openapi.yaml", "/api-docs", "/healthz", "/stats"} {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		}
		updateSystemMetrics()
	})
}
