// internal/config/loader_test.go
//
// Run: go test ./internal/config -v

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
http:
  listen_addr: "127.0.0.1:9000"
database:
  driver: memory
provider:
  base_url: "https://provider.test"
  api_key: "vault:secret/launchpad/provider#api_key"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
`

type fakeSecrets map[string]string

func (f fakeSecrets) Resolve(_ context.Context, ref string) (string, error) {
	if v, ok := f[ref]; ok {
		return v, nil
	}
	return "", errors.New("no such secret")
}

func writeRoot(t *testing.T, yaml string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "conf"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoadFrom_DefaultsAndSecrets(t *testing.T) {
	root := writeRoot(t, minimalYAML)
	secrets := fakeSecrets{"vault:secret/launchpad/provider#api_key": "k-live"}

	cfg, err := LoadFrom(context.Background(), root, secrets)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Provider.APIKey != "k-live" {
		t.Fatalf("api key = %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Timeout != 20*time.Second || cfg.Provision.RetryAttempts != 3 || cfg.Worker.Interval != 10*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Log.Dir != filepath.Join(root, "logs") {
		t.Fatalf("log dir = %q", cfg.Log.Dir)
	}
	if Get() != cfg {
		t.Fatal("Get should return the cached config")
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	root := writeRoot(t, minimalYAML)
	t.Setenv("LAUNCHPAD_PROVIDER__TIMEOUT", "5s")
	t.Setenv("LAUNCHPAD_WORKER__CONCURRENCY", "9")

	cfg, err := LoadFrom(context.Background(), root, fakeSecrets{"vault:secret/launchpad/provider#api_key": "k"})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Provider.Timeout != 5*time.Second || cfg.Worker.Concurrency != 9 {
		t.Fatalf("env overlay ignored: timeout=%s concurrency=%d", cfg.Provider.Timeout, cfg.Worker.Concurrency)
	}
}

func TestLoadFrom_VaultWithoutResolver(t *testing.T) {
	root := writeRoot(t, minimalYAML)
	if _, err := LoadFrom(context.Background(), root, nil); err == nil {
		t.Fatal("expected error for unresolved vault reference")
	}
}

func TestLoadFrom_Validation(t *testing.T) {
	root := writeRoot(t, minimalYAML+"\nnotify:\n  driver: carrier-pigeon\n")
	if _, err := LoadFrom(context.Background(), root, fakeSecrets{"vault:secret/launchpad/provider#api_key": "k"}); err == nil {
		t.Fatal("expected validation error for unknown notify driver")
	}
}

func TestLoadFrom_ProviderTimeoutBounds(t *testing.T) {
	root := writeRoot(t, minimalYAML)
	t.Setenv("LAUNCHPAD_PROVIDER__TIMEOUT", "2m")
	if _, err := LoadFrom(context.Background(), root, fakeSecrets{"vault:secret/launchpad/provider#api_key": "k"}); err == nil {
		t.Fatal("expected validation error for timeout above 60s")
	}
}

func TestResolvedDSN(t *testing.T) {
	db := Database{DSN: "u:%s@tcp(db:3306)/launchpad", Password: "pw"}
	if got := db.ResolvedDSN(); got != "u:pw@tcp(db:3306)/launchpad" {
		t.Fatalf("dsn = %q", got)
	}
	db.Password = ""
	if got := db.ResolvedDSN(); got != db.DSN {
		t.Fatalf("dsn = %q", got)
	}
}
