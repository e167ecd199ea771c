package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return os.ErrInvalid
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "name: vaultd\nport: 8080\n")
	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "vaultd" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_VAULTD_PORT", "9090")
	path := writeConfig(t, "name: vaultd\nport: ${TEST_VAULTD_PORT}\n")
	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
}

func TestLoadRunsValidation(t *testing.T) {
	path := writeConfig(t, "name: vaultd\nport: 0\n")
	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithDefaultsFallsBack(t *testing.T) {
	defaultPath := writeConfig(t, "name: fallback\nport: 1\n")
	var cfg testConfig
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), defaultPath, &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Name != "fallback" {
		t.Errorf("name = %q", cfg.Name)
	}
}
