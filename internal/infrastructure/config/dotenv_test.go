package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	if err := os.WriteFile(local, []byte(EnvAPIKey+"=local-key\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shared, []byte(EnvAPIKey+"=shared-key\n"+EnvAPISecret+"=shared-secret\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPISecret, "")
	os.Unsetenv(EnvAPIKey)
	os.Unsetenv(EnvAPISecret)

	loaded, err := LoadDotEnv(local, filepath.Join(dir, "missing.env"), shared)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %v", loaded)
	}
	if got := os.Getenv(EnvAPIKey); got != "local-key" {
		t.Errorf("%s = %q, first file should win", EnvAPIKey, got)
	}
	if got := os.Getenv(EnvAPISecret); got != "shared-secret" {
		t.Errorf("%s = %q", EnvAPISecret, got)
	}
}

func TestLoadDotEnvNoFiles(t *testing.T) {
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	if err != nil || len(loaded) != 0 {
		t.Fatalf("loaded=%v err=%v", loaded, err)
	}
}
