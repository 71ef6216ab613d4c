package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
	t.Setenv("JWT_PRIVATE_KEY", "private")
	t.Setenv("JWT_PUBLIC_KEY", "public")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 8080 || cfg.API.WorkspaceIdleTTL != 2*time.Hour || cfg.API.EvictInterval != 5*time.Minute {
		t.Fatalf("unexpected api defaults %+v", cfg.API)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.Redis.Addr())
	}
	if cfg.Snapshot.KeyPrefix != "resumeData" || cfg.Snapshot.TTL != 0 {
		t.Fatalf("unexpected snapshot defaults %+v", cfg.Snapshot)
	}
	if cfg.Export.WorkerConcurrency != 4 || cfg.Export.MaxRetry != 5 || cfg.Export.LinkTTL != 5*time.Minute {
		t.Fatalf("unexpected export defaults %+v", cfg.Export)
	}
	if cfg.Assistant.APIKey != "" || cfg.OAuth.GoogleClientID != "" {
		t.Fatal("optional integrations must default to disabled")
	}
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("WORKSPACE_IDLE_TTL", "30m")
	t.Setenv("SNAPSHOT_TTL", "720h")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("ASSISTANT_RATE_PER_MINUTE", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 9000 || cfg.API.WorkspaceIdleTTL != 30*time.Minute {
		t.Fatalf("env overrides not applied: %+v", cfg.API)
	}
	if got := strings.Join(cfg.API.AllowedOrigins, "|"); got != "https://a.example.com|https://b.example.com" {
		t.Fatalf("unexpected origins %q", got)
	}
	if cfg.Snapshot.TTL != 720*time.Hour {
		t.Fatalf("unexpected snapshot ttl %v", cfg.Snapshot.TTL)
	}
	if cfg.Assistant.APIKey != "key" || cfg.Assistant.RatePerMinute != 3 {
		t.Fatalf("unexpected assistant config %+v", cfg.Assistant)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing jwt keys", env: map[string]string{"JWT_PRIVATE_KEY": ""}, want: "jwt key pair"},
		{name: "google without secret", env: map[string]string{"GOOGLE_CLIENT_ID": "id"}, want: "google client secret"},
		{name: "negative snapshot ttl", env: map[string]string{"SNAPSHOT_TTL": "-1h"}, want: "snapshot ttl"},
		{name: "zero concurrency", env: map[string]string{"EXPORT_WORKER_CONCURRENCY": "0"}, want: "worker concurrency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	if got := d.DSN(); got != "host=db port=5432 user=u password=p dbname=n sslmode=disable" {
		t.Fatalf("unexpected dsn %q", got)
	}
}
