package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LAZYOPS_API_URL", "LAZYOPS_TOKEN_FILE", "LAZYOPS_LOG_FILE", "LAZYOPS_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.RollbackBranchPrefix != DefaultRollbackPrefix {
		t.Errorf("RollbackBranchPrefix = %q, want %q", cfg.RollbackBranchPrefix, DefaultRollbackPrefix)
	}
	if cfg.Timeouts.Deploy != 10*time.Minute {
		t.Errorf("Timeouts.Deploy = %s, want 10m", cfg.Timeouts.Deploy)
	}
}

func TestLoadFileAndPartialTimeouts(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_url: https://ops.example.com/api
page_size: 25
timeouts:
  default: 5s
  deploy: 2m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIURL != "https://ops.example.com/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.PageSize)
	}
	if cfg.Timeouts.Deploy != 2*time.Minute {
		t.Errorf("Timeouts.Deploy = %s, want 2m", cfg.Timeouts.Deploy)
	}
	// Timeouts not present in the file but present in Default() keep the default.
	if cfg.Timeouts.Kill != 30*time.Second {
		t.Errorf("Timeouts.Kill = %s, want 30s", cfg.Timeouts.Kill)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LAZYOPS_API_URL", "http://10.0.0.5:8080")
	t.Setenv("LAZYOPS_LOG_LEVEL", "debug")
	cfg, err := Load(writeConfig(t, "api_url: http://ignored:1\n"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIURL != "http://10.0.0.5:8080" {
		t.Errorf("APIURL = %q, want env override", cfg.APIURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad url", "api_url: ftp://x\n", "api_url"},
		{"bad page size", "page_size: 1000\n", "page_size"},
		{"bad level", "log_level: loud\n", "log_level"},
		{"negative timeout", "timeouts:\n  kill: -1s\n", "timeouts.kill"},
		{"malformed yaml", "api_url: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("Load() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name    string
		dotenv  string
		wantURL string
		wantErr string
	}{
		{"absent", "", DefaultAPIURL, ""},
		{"sets api url", "LAZYOPS_API_URL=http://dotenv.local:9000\n", "http://dotenv.local:9000", ""},
		{"malformed", "LAZYOPS_API_URL=\"http://unterminated\n", "", ".env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			os.Unsetenv("LAZYOPS_API_URL")
			dir := t.TempDir()
			if tt.dotenv != "" {
				if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.dotenv), 0644); err != nil {
					t.Fatalf("write .env: %v", err)
				}
			}
			chdir(t, dir)

			cfg, err := Load(filepath.Join(dir, "missing.yml"))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if cfg.APIURL != tt.wantURL {
				t.Errorf("APIURL = %q, want %q", cfg.APIURL, tt.wantURL)
			}
		})
	}
}
