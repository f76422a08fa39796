package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("RYOKOU_AI_PROVIDER", "")
	t.Setenv("RYOKOU_DB_DRIVER", "")
	t.Setenv("PLANNER_ITINERARY_TOOLS", "")
	t.Setenv("PLANNER_STREAM_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.Provider != ProviderGemini {
		t.Fatalf("expected gemini provider, got %q", cfg.AI.Provider)
	}
	if cfg.DB.Driver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.DB.Driver)
	}
	if cfg.Planner.StreamTimeout != 3*time.Minute {
		t.Fatalf("expected 3m stream timeout, got %s", cfg.Planner.StreamTimeout)
	}
	if cfg.Planner.ToolTimeout <= 0 || cfg.Planner.MaxToolTurns <= 0 {
		t.Fatalf("planner limits not defaulted: %+v", cfg.Planner)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RYOKOU_AI_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RYOKOU_DB_DRIVER", "postgres")
	t.Setenv("RYOKOU_DB_DSN", "postgres://localhost/ryokou_test")
	t.Setenv("RYOKOU_CORS_ORIGINS", "http://localhost:3000, https://ryokou.app,,")
	t.Setenv("PLANNER_STREAM_TIMEOUT", "45s")
	t.Setenv("PLANNER_TOOL_TIMEOUT", "not-a-duration")
	t.Setenv("PLANNER_ITINERARY_TOOLS", "always")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.Provider != ProviderOpenAI || cfg.DB.Driver != DriverPostgres {
		t.Fatalf("unexpected provider/driver: %q %q", cfg.AI.Provider, cfg.DB.Driver)
	}
	if got := strings.Join(cfg.HTTP.AllowedOrigins, "|"); got != "http://localhost:3000|https://ryokou.app" {
		t.Fatalf("unexpected origins: %s", got)
	}
	if cfg.Planner.StreamTimeout != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.Planner.StreamTimeout)
	}
	if cfg.Planner.ToolTimeout != 20*time.Second {
		t.Fatalf("invalid duration should fall back to default, got %s", cfg.Planner.ToolTimeout)
	}
	if cfg.Planner.ItineraryTools != "always" {
		t.Fatalf("expected always, got %q", cfg.Planner.ItineraryTools)
	}
}

func TestLoadReportsMissingKeys(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		contains string
		missing  bool
	}{
		{
			name:     "gemini key",
			env:      map[string]string{"RYOKOU_AI_PROVIDER": "gemini", "GEMINI_API_KEY": ""},
			contains: "GEMINI_API_KEY",
			missing:  true,
		},
		{
			name:     "openai key",
			env:      map[string]string{"RYOKOU_AI_PROVIDER": "openai", "OPENAI_API_KEY": ""},
			contains: "OPENAI_API_KEY",
			missing:  true,
		},
		{
			name:     "unknown provider",
			env:      map[string]string{"RYOKOU_AI_PROVIDER": "llama"},
			contains: "RYOKOU_AI_PROVIDER",
		},
		{
			name:     "unknown driver",
			env:      map[string]string{"GEMINI_API_KEY": "k", "RYOKOU_AI_PROVIDER": "", "RYOKOU_DB_DRIVER": "mysql"},
			contains: "RYOKOU_DB_DRIVER",
		},
		{
			name:     "tool mode",
			env:      map[string]string{"GEMINI_API_KEY": "k", "RYOKOU_AI_PROVIDER": "", "PLANNER_ITINERARY_TOOLS": "never"},
			contains: "PLANNER_ITINERARY_TOOLS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("error %q does not mention %s", err, tt.contains)
			}
			if errors.Is(err, ErrMissingConfig) != tt.missing {
				t.Fatalf("ErrMissingConfig match = %v, want %v", errors.Is(err, ErrMissingConfig), tt.missing)
			}
		})
	}
}
