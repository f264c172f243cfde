package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.Audio.SampleRate != 24000 || cfg.Audio.Channels != 2 {
		t.Errorf("audio defaults = %d Hz / %d ch, want 24000 / 2", cfg.Audio.SampleRate, cfg.Audio.Channels)
	}
	if cfg.Session.ReconnectDelay != 2*time.Second {
		t.Errorf("reconnect delay = %v, want 2s", cfg.Session.ReconnectDelay)
	}
	if cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("redis ttl = %v, want 24h", cfg.Redis.TTL)
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
gemini:
  api_key: inline-key
  model: gemini-2.0-flash-live-001
translate:
  enabled: true
  source_lang: en
  target_lang: es
redis:
  enabled: true
  addr: redis.internal:6379
  prefix: assistant
audio:
  sample_rate: 16000
  channels: 1
  frame_duration: 50ms
session:
  profile: interview
  reconnect_delay: 500ms
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash-live-001" {
		t.Errorf("model = %q", cfg.Gemini.Model)
	}
	if !cfg.Translate.Enabled || cfg.Translate.TargetLang != "es" {
		t.Errorf("translate = %+v", cfg.Translate)
	}
	if cfg.Redis.Prefix != "assistant" {
		t.Errorf("redis prefix = %q, want assistant", cfg.Redis.Prefix)
	}
	if cfg.Audio.FrameDuration != 50*time.Millisecond {
		t.Errorf("frame duration = %v, want 50ms", cfg.Audio.FrameDuration)
	}
	if cfg.Session.Profile != "interview" {
		t.Errorf("profile = %q, want interview", cfg.Session.Profile)
	}

	pipeline := cfg.Translate.Pipeline()
	if !pipeline.Enabled || pipeline.SourceLang != "en" || pipeline.TargetLang != "es" {
		t.Errorf("pipeline config = %+v", pipeline)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "lgo_level: debug",
			want: "failed to parse config",
		},
		{
			name: "bad log level",
			yaml: "log_level: loud",
			want: "invalid log level",
		},
		{
			name: "translate same language",
			yaml: "translate:\n  enabled: true\n  source_lang: en\n  target_lang: EN",
			want: "invalid translate config",
		},
		{
			name: "redis without addr",
			yaml: "redis:\n  enabled: true\n  addr: \"\"",
			want: "redis enabled but no addr",
		},
		{
			name: "bad audio channels",
			yaml: "audio:\n  channels: 5",
			want: "invalid audio config",
		},
		{
			name: "zero reconnect delay",
			yaml: "session:\n  reconnect_delay: 0s",
			want: "reconnect delay must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, want warn", cfg.LogLevel)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load accepted a missing file")
	}
}

func TestCredential_Resolve(t *testing.T) {
	t.Run("explicit value wins", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "from-env")
		key, err := Credential{APIKey: "inline"}.Resolve("gemini")
		if err != nil {
			t.Fatal(err)
		}
		if key != "inline" {
			t.Errorf("key = %q, want inline", key)
		}
	})

	t.Run("named env var", func(t *testing.T) {
		t.Setenv("MY_CUSTOM_KEY", "custom")
		key, err := Credential{APIKeyEnv: "MY_CUSTOM_KEY"}.Resolve("gemini")
		if err != nil {
			t.Fatal(err)
		}
		if key != "custom" {
			t.Errorf("key = %q, want custom", key)
		}
	})

	t.Run("named env var unset is an error", func(t *testing.T) {
		if _, err := (Credential{APIKeyEnv: "SIDENOTE_TEST_UNSET"}).Resolve("gemini"); err == nil {
			t.Error("Resolve accepted an unset env var")
		}
	})

	t.Run("default env chain", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "fallback")
		key, err := Credential{}.Resolve("gemini")
		if err != nil {
			t.Fatal(err)
		}
		if key != "fallback" {
			t.Errorf("key = %q, want fallback", key)
		}
	})

	t.Run("translate key may be empty", func(t *testing.T) {
		t.Setenv("GOOGLE_TRANSLATE_API_KEY", "")
		cfg := Default()
		key, err := cfg.TranslateKey()
		if err != nil {
			t.Fatal(err)
		}
		if key != "" {
			t.Errorf("key = %q, want empty", key)
		}
	})

	t.Run("gemini key required", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "")
		cfg := Default()
		if _, err := cfg.GeminiKey(); err == nil {
			t.Error("GeminiKey succeeded with no key available")
		}
	})
}
