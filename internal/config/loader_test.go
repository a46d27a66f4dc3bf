package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/spendseg/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Features, convey.ShouldResemble, config.DefaultFeatures())
				convey.So(cfg.Seed, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SPENDSEG_ADDR", ":8080")
			_ = os.Setenv("SPENDSEG_QUEUE_SIZE", "64")
			_ = os.Setenv("SPENDSEG_WORKER_COUNT", "3")
			_ = os.Setenv("SPENDSEG_SEED", "42")
			_ = os.Setenv("SPENDSEG_FEATURES", "amount,date")
			_ = os.Setenv("SPENDSEG_INSIGHT_POLICY", "lenient")
			_ = os.Setenv("SPENDSEG_DEDUPE_TTL", "30m")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.Seed, convey.ShouldNotBeNil)
				convey.So(*cfg.Seed, convey.ShouldEqual, int64(42))
				convey.So(cfg.Features, convey.ShouldResemble, []string{"amount", "date"})
				convey.So(cfg.InsightPolicy, convey.ShouldEqual, "lenient")
				convey.So(cfg.DedupeTTL, convey.ShouldEqual, 30*time.Minute)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
# clustering
addr: ":9090"
max_k: 8
elbow_threshold: 0.2
labeling: representative
features:
  - amount
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SPENDSEG_CONFIG", tmpFile)
			_ = os.Setenv("SPENDSEG_MAX_K", "7")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env vars win over them", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.MaxK, convey.ShouldEqual, 7)
				convey.So(cfg.ElbowThreshold, convey.ShouldEqual, 0.2)
				convey.So(cfg.Labeling, convey.ShouldEqual, "representative")
				convey.So(cfg.Features, convey.ShouldResemble, []string{"amount"})
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("SPENDSEG_CONFIG", "/nonexistent/spendseg.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a loaded value is invalid", func() {
			_ = os.Setenv("SPENDSEG_STORE", "postgres")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, `invalid store "postgres"`)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"SPENDSEG_CONFIG",
		"SPENDSEG_ADDR",
		"SPENDSEG_QUEUE_SIZE",
		"SPENDSEG_WORKER_COUNT",
		"SPENDSEG_SEED",
		"SPENDSEG_FEATURES",
		"SPENDSEG_INSIGHT_POLICY",
		"SPENDSEG_DEDUPE_TTL",
		"SPENDSEG_MAX_K",
		"SPENDSEG_STORE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "spendseg-config-*.yaml")
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
