package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8091" {
		t.Errorf("Expected Port to be 8091, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.KIS.BaseURL != "https://openapi.koreainvestment.com:9443" {
		t.Errorf("Unexpected KIS base URL: %s", cfg.KIS.BaseURL)
	}

	if cfg.Pipeline.Workers != 2 {
		t.Errorf("Expected 2 pipeline workers, got %d", cfg.Pipeline.Workers)
	}

	if cfg.Export.RetentionDays != 30 {
		t.Errorf("Expected 30 retention days, got %d", cfg.Export.RetentionDays)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("ENV", "production")
	os.Setenv("KIS_APP_KEY", "test-key")
	os.Setenv("KIS_APP_SECRET", "test-secret")
	os.Setenv("PIPELINE_RUN_TIMEOUT", "10m")
	os.Setenv("GEMINI_API_KEY_01", "g1")
	os.Setenv("GEMINI_API_KEY_03", "g3")

	defer func() {
		os.Unsetenv("ENV")
		os.Unsetenv("KIS_APP_KEY")
		os.Unsetenv("KIS_APP_SECRET")
		os.Unsetenv("PIPELINE_RUN_TIMEOUT")
		os.Unsetenv("GEMINI_API_KEY_01")
		os.Unsetenv("GEMINI_API_KEY_03")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.KIS.AppKey != "test-key" {
		t.Errorf("Expected KIS AppKey to be test-key, got %s", cfg.KIS.AppKey)
	}

	if cfg.Pipeline.RunTimeout.Minutes() != 10 {
		t.Errorf("Expected 10m run timeout, got %v", cfg.Pipeline.RunTimeout)
	}

	// 빈 슬롯은 건너뛰고 설정된 키만 수집
	if len(cfg.Gemini.APIKeys) != 2 {
		t.Errorf("Expected 2 gemini keys, got %d", len(cfg.Gemini.APIKeys))
	}
}

func TestValidateRejectsBadEnv(t *testing.T) {
	os.Setenv("ENV", "prod")
	defer os.Unsetenv("ENV")

	if _, err := Load(); err == nil {
		t.Fatal("Expected validation error for ENV=prod")
	}
}
