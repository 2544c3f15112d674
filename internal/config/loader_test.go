package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/rollcall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":5000")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "mongo")
				convey.So(cfg.RecognizeThreshold, convey.ShouldEqual, 0.7)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ROLLCALL_ADDR", ":8080")
			_ = os.Setenv("ROLLCALL_STORE_BACKEND", "file")
			_ = os.Setenv("ROLLCALL_STORE_FALLBACK", "false")
			_ = os.Setenv("ROLLCALL_RECOGNIZE_THRESHOLD", "0.75")
			_ = os.Setenv("ROLLCALL_DEDUPE_WINDOW_SECONDS", "300")
			_ = os.Setenv("ROLLCALL_CORS_ORIGINS", "http://a.example, http://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "file")
				convey.So(cfg.StoreFallback, convey.ShouldBeFalse)
				convey.So(cfg.RecognizeThreshold, convey.ShouldEqual, 0.75)
				convey.So(cfg.DedupeWindowSeconds, convey.ShouldEqual, 300)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://a.example", "http://b.example"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
store_backend: mysql
mysql_dsn: "root:secret@tcp(localhost:3306)/attendance?parseTime=true"
match_policy: best
cascade_path: /etc/rollcall/facefinder
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("ROLLCALL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "mysql")
				convey.So(cfg.MatchPolicy, convey.ShouldEqual, "best")
				convey.So(cfg.CascadePath, convey.ShouldEqual, "/etc/rollcall/facefinder")
				convey.So(cfg.EnrollThreshold, convey.ShouldEqual, 0.8)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, "addr: \":9090\"\ndata_dir: /var/lib/rollcall\n")
			_ = os.Setenv("ROLLCALL_CONFIG", tmpFile)
			_ = os.Setenv("ROLLCALL_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DataDir, convey.ShouldEqual, "/var/lib/rollcall")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("ROLLCALL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ROLLCALL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("ROLLCALL_MONGO_TIMEOUT_MS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given a valid default config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown backend", func(c *config.Config) { c.StoreBackend = "redis" }},
			{"mysql without dsn", func(c *config.Config) { c.StoreBackend = "mysql" }},
			{"threshold of one", func(c *config.Config) { c.RecognizeThreshold = 1 }},
			{"threshold below minus one", func(c *config.Config) { c.EnrollThreshold = -1.5 }},
			{"unknown policy", func(c *config.Config) { c.MatchPolicy = "random" }},
			{"negative window", func(c *config.Config) { c.DedupeWindowSeconds = -1 }},
		}
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate(cfg)

				convey.Convey("Then validation fails", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When loading an empty addr from env", func() {
			clearConfigEnvVars()
			_ = os.Setenv("ROLLCALL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(context.Background())

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"ROLLCALL_CONFIG",
		"ROLLCALL_ADDR",
		"ROLLCALL_STORE_BACKEND",
		"ROLLCALL_STORE_FALLBACK",
		"ROLLCALL_RECOGNIZE_THRESHOLD",
		"ROLLCALL_DEDUPE_WINDOW_SECONDS",
		"ROLLCALL_CORS_ORIGINS",
		"ROLLCALL_MONGO_TIMEOUT_MS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rollcall-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}
