package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %s, want :8080", cfg.ListenAddr)
	}
	if cfg.HighRiskThreshold != 70 || cfg.DetailedAnalysisThreshold != 40 {
		t.Errorf("thresholds = %d/%d, want 70/40", cfg.HighRiskThreshold, cfg.DetailedAnalysisThreshold)
	}
	if cfg.RuleStaleness != 5*time.Minute {
		t.Errorf("RuleStaleness = %v, want 5m", cfg.RuleStaleness)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BASTION_LISTEN_ADDR", ":9999")
	t.Setenv("BASTION_HIGH_RISK_THRESHOLD", "80")
	t.Setenv("BASTION_EMBEDDED_NATS", "true")

	cfg := NewDefaultConfig()

	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %s, want :9999", cfg.ListenAddr)
	}
	if cfg.HighRiskThreshold != 80 {
		t.Errorf("HighRiskThreshold = %d, want 80", cfg.HighRiskThreshold)
	}
	if !cfg.EmbeddedNATS {
		t.Error("EmbeddedNATS should be true")
	}
}

func TestYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bastion.yaml")
	data := []byte("listen_addr: \":7070\"\nhigh_risk_threshold: 90\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("BASTION_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %s, want :7070", cfg.ListenAddr)
	}
	if cfg.HighRiskThreshold != 90 {
		t.Errorf("HighRiskThreshold = %d, want 90", cfg.HighRiskThreshold)
	}
	// Untouched keys keep their environment defaults.
	if cfg.DetailedAnalysisThreshold != 40 {
		t.Errorf("DetailedAnalysisThreshold = %d, want 40", cfg.DetailedAnalysisThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("BASTION_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "0.7")
	t.Setenv("TEST_BOOL", "yes")
	t.Setenv("TEST_BAD_INT", "abc")

	if got := GetEnv("TEST_STR", "d"); got != "value" {
		t.Errorf("GetEnv = %s", got)
	}
	if got := GetEnv("TEST_MISSING", "d"); got != "d" {
		t.Errorf("GetEnv default = %s", got)
	}
	if got := GetEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvInt bad value = %d, want default", got)
	}
	if got := GetEnvFloat("TEST_FLOAT", 0.1); got != 0.7 {
		t.Errorf("GetEnvFloat = %v", got)
	}
	if !GetEnvBool("TEST_BOOL", false) {
		t.Error("GetEnvBool should accept yes")
	}
}
