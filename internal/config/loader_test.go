package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/examintel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxTopics, convey.ShouldEqual, 15)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("EXAMINTEL_ADDR", ":8080")
			_ = os.Setenv("EXAMINTEL_QUEUE_SIZE", "50")
			_ = os.Setenv("EXAMINTEL_WORKER_COUNT", "3")
			_ = os.Setenv("EXAMINTEL_MAX_TOPICS", "10")
			_ = os.Setenv("EXAMINTEL_RETRIEVAL_URL", "http://rag:8000")
			_ = os.Setenv("EXAMINTEL_CACHE_ENABLED", "true")
			_ = os.Setenv("EXAMINTEL_STRESS_SOURCE", "assessment")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 50)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.MaxTopics, convey.ShouldEqual, 10)
				convey.So(cfg.RetrievalURL, convey.ShouldEqual, "http://rag:8000")
				convey.So(cfg.CacheEnabled, convey.ShouldBeTrue)
				convey.So(cfg.StressSource, convey.ShouldEqual, "assessment")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
worker_count: 6
max_block_hours: 1.5
coverage_source: assessment
store_driver: postgres
postgres_dsn: "postgres://u:p@localhost/examintel?sslmode=disable"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("EXAMINTEL_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and defaults fill the rest", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)
				convey.So(cfg.MaxBlockHours, convey.ShouldEqual, 1.5)
				convey.So(cfg.CoverageSource, convey.ShouldEqual, "assessment")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StorePostgres)
				convey.So(cfg.MaxTopics, convey.ShouldEqual, 15)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
worker_count: 6
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("EXAMINTEL_CONFIG", tmpFile)
			_ = os.Setenv("EXAMINTEL_WORKER_COUNT", "12")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("EXAMINTEL_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("EXAMINTEL_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file path is given explicitly", func() {
			path := createTempConfigFile("addr: \":7070\"\nstore_driver: memory\n")
			defer os.Remove(path)
			_ = os.Setenv("EXAMINTEL_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.LoadFile(ctx, path)

			convey.Convey("Then it wins over EXAMINTEL_CONFIG", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When a numeric variable is not a number", func() {
			_ = os.Setenv("EXAMINTEL_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("EXAMINTEL_STORE_DRIVER", "postgres")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an invalid config error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				if key := kv[:i]; len(key) >= len(config.EnvPrefix) && key[:len(config.EnvPrefix)] == config.EnvPrefix {
					_ = os.Unsetenv(key)
				}
				break
			}
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "examintel-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
