package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	TurnTimeout time.Duration `envconfig:"TURN_TIMEOUT" default:"60s"`
	Driver      string        `envconfig:"DRIVER" default:"memory"`
}

// Not parallel: these tests change the process environment.
func TestNewReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CFGTEST_TURN_TIMEOUT=5s\nCFGTEST_DRIVER=redis\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CFGTEST_DRIVER", "upstash")
	t.Cleanup(func() {
		SetEnvFile("")
		_ = os.Unsetenv("CFGTEST_TURN_TIMEOUT")
	})

	SetEnvFile(path)
	conf, err := New[sampleConfig]("CFGTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.TurnTimeout != 5*time.Second {
		t.Fatalf("TurnTimeout = %v, want 5s", conf.TurnTimeout)
	}
	if conf.Driver != "upstash" {
		t.Fatalf("Driver = %q, process env must win over the file", conf.Driver)
	}
}

func TestNewMissingExplicitFile(t *testing.T) {
	t.Cleanup(func() { SetEnvFile("") })

	SetEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if _, err := New[sampleConfig]("CFGTEST"); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestNewDefaults(t *testing.T) {
	conf, err := New[sampleConfig]("CFGDEFAULT")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.TurnTimeout != 60*time.Second || conf.Driver != "memory" {
		t.Fatalf("unexpected defaults: %+v", conf)
	}
}
