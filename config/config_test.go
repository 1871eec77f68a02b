package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/asynchttp/client"
	"github.com/adamwoolhether/asynchttp/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var want client.Defaults
	want.ApplyDefaults()

	if diff := cmp.Diff(want, cfg.Client); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	file := writeFile(t, "asynchttp.yml", `
client:
  response_timeout: 5s
  redirections: 2
  verification: false
  user_agent: from-file
  throttle:
    rps: 10
logging:
  level: debug
  format: json
`)
	envFile := writeFile(t, ".env", "ASYNCHTTP_CLIENT_CONNECTION_TIMEOUT=3s\nASYNCHTTP_CLIENT_USER_AGENT=from-dotenv\n")

	// godotenv writes straight to the process environment.
	t.Cleanup(func() { os.Unsetenv("ASYNCHTTP_CLIENT_CONNECTION_TIMEOUT") })
	t.Setenv("ASYNCHTTP_CLIENT_USER_AGENT", "from-env")
	t.Setenv("ASYNCHTTP_CLIENT_MAX_CONCURRENT", "8")

	cfg, err := config.Load(config.WithConfigFile(file), config.WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	got := cfg.Client
	if got.ResponseTimeout != 5*time.Second {
		t.Errorf("response timeout = %v", got.ResponseTimeout)
	}
	if got.ConnectionTimeout != 3*time.Second {
		t.Errorf("connection timeout = %v", got.ConnectionTimeout)
	}
	if got.RequestTimeout != client.NoTimeout {
		t.Errorf("request timeout = %v", got.RequestTimeout)
	}
	if *got.Redirections != 2 || *got.Verification {
		t.Errorf("redirections = %d, verification = %v", *got.Redirections, *got.Verification)
	}
	if got.UserAgent != "from-env" {
		t.Errorf("user agent = %q, want the process environment to win", got.UserAgent)
	}
	if got.MaxConcurrent != 8 {
		t.Errorf("max concurrent = %d", got.MaxConcurrent)
	}
	if got.Throttle.RPS != 10 || got.Throttle.Burst != 10 {
		t.Errorf("throttle = %+v", got.Throttle)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"negative timeout": "client:\n  response_timeout: -1s\n",
		"missing ca path":  "client:\n  ca_path: /does/not/exist\n",
		"bad log level":    "logging:\n  level: loud\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(config.WithConfigFile(writeFile(t, "c.yml", content))); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	_, err := config.Load(config.WithConfigFile(writeFile(t, "c.yml", "client:\n  max_concurrent: -2\n")))
	if !errors.Is(err, client.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	if _, err := config.Load(config.WithConfigFile("/does/not/exist.yml")); err == nil {
		t.Error("missing config file: expected error")
	}
	if _, err := config.Load(config.WithEnvFile("/does/not/exist.env")); err == nil {
		t.Error("missing env file: expected error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log := config.NewLogger(config.Logging{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestConfig_ClientOptions(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}

	c, err := client.Build(cfg.ClientOptions(&bytes.Buffer{})...)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	if diff := cmp.Diff(cfg.Client, c.Defaults()); diff != "" {
		t.Errorf("client defaults mismatch (-want +got):\n%s", diff)
	}
}
