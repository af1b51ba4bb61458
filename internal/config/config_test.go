package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestLoadDefaults tests that default configuration values are loaded correctly
func TestLoadDefaults(t *testing.T) {
	// Reset Viper singleton to avoid interference from other tests
	viper.Reset()

	// Point HOME at a temp directory so no existing config.yaml is picked up
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Region != "us-east-1" {
		t.Errorf("expected default Region 'us-east-1', got %q", cfg.Region)
	}
	if cfg.ModelID != "anthropic.claude-instant-v1" {
		t.Errorf("expected default ModelID 'anthropic.claude-instant-v1', got %q", cfg.ModelID)
	}
	if cfg.CustomerTable != "rivertown-customers" {
		t.Errorf("expected default CustomerTable 'rivertown-customers', got %q", cfg.CustomerTable)
	}
	if cfg.MaxHistoryMessages != DefaultMaxHistoryMessages {
		t.Errorf("expected default MaxHistoryMessages %d, got %d",
			DefaultMaxHistoryMessages, cfg.MaxHistoryMessages)
	}
	if cfg.GenerateTimeout != 90*time.Second {
		t.Errorf("expected default GenerateTimeout 90s, got %v", cfg.GenerateTimeout)
	}
	if cfg.ServerAddr != "127.0.0.1:3500" {
		t.Errorf("expected default ServerAddr '127.0.0.1:3500', got %q", cfg.ServerAddr)
	}
}

// TestLoadEnvOverride tests that environment variables override defaults
func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("RIVERCHAT_KNOWLEDGE_BASE_ID", "KB123456")
	t.Setenv("RIVERCHAT_VOICE_API_KEY", "sk-test-override")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Region != "us-west-2" {
		t.Errorf("expected Region 'us-west-2', got %q", cfg.Region)
	}
	if cfg.KnowledgeBaseID != "KB123456" {
		t.Errorf("expected KnowledgeBaseID 'KB123456', got %q", cfg.KnowledgeBaseID)
	}
	if cfg.VoiceAPIKey != "sk-test-override" {
		t.Errorf("expected VoiceAPIKey override, got %q", cfg.VoiceAPIKey)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Region:             "us-east-1",
			ModelID:            "anthropic.claude-instant-v1",
			MaxHistoryMessages: 20,
			RetrieveTimeout:    time.Second,
			GenerateTimeout:    time.Second,
			StoreTimeout:       time.Second,
			CallTimeout:        time.Second,
		}
	}

	t.Run("valid baseline", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("nil config", func(t *testing.T) {
		var cfg *Config
		if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
			t.Errorf("expected ErrConfigNil, got %v", err)
		}
	})

	t.Run("missing region", func(t *testing.T) {
		cfg := base()
		cfg.Region = ""
		if err := cfg.Validate(); !errors.Is(err, ErrMissingRegion) {
			t.Errorf("expected ErrMissingRegion, got %v", err)
		}
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := base()
		cfg.ModelID = ""
		if err := cfg.Validate(); !errors.Is(err, ErrMissingModel) {
			t.Errorf("expected ErrMissingModel, got %v", err)
		}
	})

	t.Run("zero timeout", func(t *testing.T) {
		cfg := base()
		cfg.CallTimeout = 0
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("expected ErrInvalidTimeout, got %v", err)
		}
	})

	t.Run("history cap exceeded", func(t *testing.T) {
		cfg := base()
		cfg.MaxHistoryMessages = MaxAllowedHistoryMessages + 1
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidHistoryLimit) {
			t.Errorf("expected ErrInvalidHistoryLimit, got %v", err)
		}
	})
}

func TestValidateServe(t *testing.T) {
	base := func() *Config {
		return &Config{
			Region:          "us-east-1",
			ModelID:         "anthropic.claude-instant-v1",
			KnowledgeBaseID: "KB123456",
			CustomerTable:   "rivertown-customers",
			VoiceAPIKey:     "sk-test",
			RetrieveTimeout: time.Second,
			GenerateTimeout: time.Second,
			StoreTimeout:    time.Second,
			CallTimeout:     time.Second,
		}
	}

	t.Run("valid serve config", func(t *testing.T) {
		if err := base().ValidateServe(); err != nil {
			t.Errorf("expected valid serve config, got %v", err)
		}
	})

	t.Run("missing knowledge base", func(t *testing.T) {
		cfg := base()
		cfg.KnowledgeBaseID = ""
		if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingKnowledgeBase) {
			t.Errorf("expected ErrMissingKnowledgeBase, got %v", err)
		}
	})

	t.Run("missing customer table", func(t *testing.T) {
		cfg := base()
		cfg.CustomerTable = ""
		if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingCustomerTable) {
			t.Errorf("expected ErrMissingCustomerTable, got %v", err)
		}
	})

	t.Run("missing voice API key", func(t *testing.T) {
		cfg := base()
		cfg.VoiceAPIKey = ""
		if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingVoiceAPIKey) {
			t.Errorf("expected ErrMissingVoiceAPIKey, got %v", err)
		}
	})
}

// TestMarshalJSONMasksSecrets verifies the voice API key never appears in
// serialized config (which is what ends up in logs).
func TestMarshalJSONMasksSecrets(t *testing.T) {
	cfg := &Config{
		Region:      "us-east-1",
		VoiceAPIKey: "sk-super-secret-value",
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if strings.Contains(string(data), "sk-super-secret-value") {
		t.Errorf("voice API key leaked in JSON output: %s", data)
	}
	if !strings.Contains(string(data), maskedValue) {
		t.Errorf("expected masked placeholder in JSON output: %s", data)
	}
}
