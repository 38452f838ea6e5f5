package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		// keep a stray .env in the package directory out of the way
		_ = os.Setenv("GAFFER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("GAFFER_ADDR", ":8080")
			_ = os.Setenv("GAFFER_K_FACTOR_STABLE", "24.5")
			_ = os.Setenv("GAFFER_STRICT_ORDERING", "true")
			_ = os.Setenv("GAFFER_UPDATE_INTERVAL", "30m")
			_ = os.Setenv("GAFFER_DATABASE_URL", "postgres://elo@localhost/elo")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.KFactorStable, convey.ShouldEqual, 24.5)
				convey.So(cfg.StrictOrdering, convey.ShouldBeTrue)
				convey.So(cfg.UpdateInterval, convey.ShouldEqual, 30*time.Minute)
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://elo@localhost/elo")
				convey.So(cfg.HomeAdvantage, convey.ShouldEqual, 40)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
home_advantage: 65
queue_size: 8
csv_dir: /var/lib/gaffer
metrics_labels:
  league: serie_a
`)
			_ = os.Setenv("GAFFER_CONFIG", tmpFile)
			_ = os.Setenv("GAFFER_QUEUE_SIZE", "2")
			_ = os.Setenv("GAFFER_METRICS_BUCKETS", "0.05,0.5,5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.HomeAdvantage, convey.ShouldEqual, 65)
				convey.So(cfg.CSVDir, convey.ShouldEqual, "/var/lib/gaffer")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 2)
				convey.So(cfg.BaseRating, convey.ShouldEqual, 1500)
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"league": "serie_a"})
				convey.So(cfg.MetricsBuckets, convey.ShouldResemble, []float64{0.05, 0.5, 5})
			})
		})

		convey.Convey("When a .env file is present", func() {
			dotenv := filepath.Join(t.TempDir(), ".env")
			convey.So(os.WriteFile(dotenv, []byte("GAFFER_DATABASE_URL=postgres://from-dotenv\nGAFFER_ADDR=:7000\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("GAFFER_ENV_FILE", dotenv)
			_ = os.Setenv("GAFFER_ADDR", ":7100")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://from-dotenv")
				convey.So(cfg.Addr, convey.ShouldEqual, ":7100")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("GAFFER_CONFIG", createTempConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("GAFFER_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("GAFFER_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("GAFFER_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("GAFFER_K_FACTOR_VOLATILE", "-10")

			_, err := config.Load(ctx)

			convey.Convey("Then it should name the setting", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "k factors")
			})
		})
	})
}

// clearConfigEnvVars removes every variable Load reads.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "GAFFER_") {
			_ = os.Unsetenv(key)
		}
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "gaffer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
