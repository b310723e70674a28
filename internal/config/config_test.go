package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Endpoint != "127.0.0.1:8059" {
		t.Errorf("expected default endpoint '127.0.0.1:8059', got %s", cfg.Endpoint)
	}
	if cfg.AsrPrefix != "/xlp/short_voice_silence_server" {
		t.Errorf("unexpected default asr prefix %s", cfg.AsrPrefix)
	}
	if !strings.HasPrefix(cfg.NotifyURL, "http://127.0.0.1:8059/xlp/ai_robot/v1") {
		t.Errorf("unexpected default notify url %s", cfg.NotifyURL)
	}
	if cfg.NotifyTimeout != 5*time.Second {
		t.Errorf("expected default notify timeout 5s, got %v", cfg.NotifyTimeout)
	}
	if cfg.AppID != "1500000615" {
		t.Errorf("expected default app id '1500000615', got %s", cfg.AppID)
	}

	// Engine defaults
	if cfg.Engine.Provider != "mock" {
		t.Errorf("expected default provider 'mock', got %s", cfg.Engine.Provider)
	}
	if cfg.Engine.Language != "zh-CN" {
		t.Errorf("expected default language 'zh-CN', got %s", cfg.Engine.Language)
	}
	if cfg.Engine.SampleRate != 8000 || cfg.Engine.BitsPerSample != 16 || cfg.Engine.Channels != 1 {
		t.Errorf("unexpected default audio format %+v", cfg.Engine)
	}
	if cfg.Luis.Timeout != 3*time.Second {
		t.Errorf("expected default luis timeout 3s, got %v", cfg.Luis.Timeout)
	}

	if cfg.Keeper.DuplicatePolicy != "last_start_wins" {
		t.Errorf("expected default policy 'last_start_wins', got %s", cfg.Keeper.DuplicatePolicy)
	}
	if cfg.Bridge.Shards != 16 || cfg.Bridge.QueueSize != 256 {
		t.Errorf("unexpected bridge defaults %+v", cfg.Bridge)
	}
	if cfg.GRPC.Enabled {
		t.Error("expected grpc disabled by default")
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}

	// Kafka principal falls back to the service name
	if cfg.Kafka.Principal != cfg.Name {
		t.Errorf("expected kafka principal %q, got %q", cfg.Name, cfg.Kafka.Principal)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LUIS_ENDPOINT", "0.0.0.0:9000")
	t.Setenv("LUIS_AUTH_KEY", "secret")
	t.Setenv("LUIS_NOTIFY_TIMEOUT", "2s")
	t.Setenv("LUIS_ENGINE_LANGUAGE", "en-US")
	t.Setenv("LUIS_KEEPER_DUPLICATE_POLICY", "reject")
	t.Setenv("LUIS_KAFKA_ENABLED", "true")
	t.Setenv("LUIS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Endpoint != "0.0.0.0:9000" {
		t.Errorf("expected endpoint '0.0.0.0:9000', got %s", cfg.Endpoint)
	}
	if cfg.AuthKey != "secret" {
		t.Errorf("expected auth key 'secret', got %s", cfg.AuthKey)
	}
	if cfg.NotifyTimeout != 2*time.Second {
		t.Errorf("expected notify timeout 2s, got %v", cfg.NotifyTimeout)
	}
	if cfg.Engine.Language != "en-US" {
		t.Errorf("expected language 'en-US', got %s", cfg.Engine.Language)
	}
	if cfg.Keeper.DuplicatePolicy != "reject" {
		t.Errorf("expected policy 'reject', got %s", cfg.Keeper.DuplicatePolicy)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nsl.toml")
	content := `
name = "test server"
endpoint = "127.0.0.1:18059"
auth_key = "from-file"

[log]
level = "debug"
folder = "logs"
rotate_size_mb = 5

[engine]
provider = "azure"
language = "zh-CN"

[azure]
subscription = "sub"
region = "westus"

[luis]
app_id = "app-1"
intents = ["confirm", "deny"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Name != "test server" || cfg.Endpoint != "127.0.0.1:18059" || cfg.AuthKey != "from-file" {
		t.Errorf("unexpected top-level settings %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Folder != "logs" || cfg.Log.RotateSizeMB != 5 {
		t.Errorf("unexpected log settings %+v", cfg.Log)
	}
	if cfg.Engine.Provider != "azure" || cfg.Azure.Region != "westus" {
		t.Errorf("unexpected engine settings %+v %+v", cfg.Engine, cfg.Azure)
	}
	if cfg.Luis.AppID != "app-1" || len(cfg.Luis.Intents) != 2 {
		t.Errorf("unexpected luis settings %+v", cfg.Luis)
	}
	// untouched keys keep their defaults
	if cfg.Bridge.Shards != 16 {
		t.Errorf("expected default shards 16, got %d", cfg.Bridge.Shards)
	}
	if cfg.Kafka.Principal != "test server" {
		t.Errorf("expected kafka principal 'test server', got %s", cfg.Kafka.Principal)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"bad provider", func(s *Settings) { s.Engine.Provider = "watson" }},
		{"bad policy", func(s *Settings) { s.Keeper.DuplicatePolicy = "first_wins" }},
		{"zero shards", func(s *Settings) { s.Bridge.Shards = 0 }},
		{"prefix without slash", func(s *Settings) { s.AsrPrefix = "xlp" }},
		{"bad log level", func(s *Settings) { s.Log.Level = "verbose" }},
		{"azure without subscription", func(s *Settings) {
			s.Engine.Provider = "azure"
			s.Azure.Subscription = ""
		}},
		{"kafka without brokers", func(s *Settings) {
			s.Kafka.Enabled = true
			s.Kafka.Brokers = nil
		}},
		{"grpc without addr", func(s *Settings) {
			s.GRPC.Enabled = true
			s.GRPC.Addr = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
