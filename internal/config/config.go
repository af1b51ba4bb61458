// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.riverchat/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AWS: region, Bedrock knowledge base and model identifiers
//   - Store: DynamoDB customer table
//   - Voice: call-placement API endpoint, key, and call parameters
//   - Timeouts: per-external-call deadlines
//
// Security: the voice API key is never logged; it is masked in
// MarshalJSON. Validation uses sentinel errors checkable with
// errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingRegion indicates the AWS region is not set.
	ErrMissingRegion = errors.New("missing AWS region")

	// ErrMissingKnowledgeBase indicates the Bedrock knowledge base ID is not set.
	ErrMissingKnowledgeBase = errors.New("missing knowledge base ID")

	// ErrMissingModel indicates the generation model ID is not set.
	ErrMissingModel = errors.New("missing model ID")

	// ErrMissingCustomerTable indicates the DynamoDB customer table is not set.
	ErrMissingCustomerTable = errors.New("missing customer table")

	// ErrMissingVoiceAPIKey indicates the voice API key is not set.
	ErrMissingVoiceAPIKey = errors.New("missing voice API key")

	// ErrInvalidTimeout indicates a per-call timeout is zero or negative.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidHistoryLimit indicates the history message cap is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid max history messages")
)

const (
	// DefaultMaxHistoryMessages is the default number of prior turns
	// carried into the generation prompt.
	DefaultMaxHistoryMessages = 20

	// MaxAllowedHistoryMessages is the absolute cap to prevent unbounded
	// prompt growth.
	MaxAllowedHistoryMessages = 200
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AWS / Bedrock configuration
	Region          string `mapstructure:"region" json:"region"`
	KnowledgeBaseID string `mapstructure:"knowledge_base_id" json:"knowledge_base_id"`
	ModelID         string `mapstructure:"model_id" json:"model_id"`

	// Customer store configuration
	CustomerTable string `mapstructure:"customer_table" json:"customer_table"`

	// Voice call configuration
	VoiceBaseURL    string `mapstructure:"voice_base_url" json:"voice_base_url"`
	VoiceAPIKey     string `mapstructure:"voice_api_key" json:"voice_api_key"` // SENSITIVE: masked in MarshalJSON
	VoiceID         string `mapstructure:"voice_id" json:"voice_id"`
	MaxCallDuration int    `mapstructure:"max_call_duration" json:"max_call_duration"` // minutes
	FallbackNumber  string `mapstructure:"fallback_number" json:"fallback_number"`

	// Conversation configuration
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Per-call timeouts. Transport defaults alone would let a hung
	// retrieval or generation call block the turn indefinitely.
	RetrieveTimeout time.Duration `mapstructure:"retrieve_timeout" json:"retrieve_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" json:"generate_timeout"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout" json:"store_timeout"`
	CallTimeout     time.Duration `mapstructure:"call_timeout" json:"call_timeout"`

	// Server configuration
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".riverchat")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AWS defaults
	viper.SetDefault("region", "us-east-1")
	viper.SetDefault("model_id", "anthropic.claude-instant-v1")

	// Customer store defaults
	viper.SetDefault("customer_table", "rivertown-customers")

	// Voice defaults
	viper.SetDefault("voice_base_url", "https://api.bland.ai")
	viper.SetDefault("voice_id", "maya")
	viper.SetDefault("max_call_duration", 12)
	viper.SetDefault("fallback_number", "(555) 555-0199")

	// Conversation defaults
	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// Timeout defaults
	viper.SetDefault("retrieve_timeout", 15*time.Second)
	viper.SetDefault("generate_timeout", 90*time.Second)
	viper.SetDefault("store_timeout", 10*time.Second)
	viper.SetDefault("call_timeout", 30*time.Second)

	// Server defaults
	viper.SetDefault("server_addr", "127.0.0.1:3500")
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("region", "AWS_REGION")
	mustBind("knowledge_base_id", "RIVERCHAT_KNOWLEDGE_BASE_ID")
	mustBind("model_id", "RIVERCHAT_MODEL_ID")
	mustBind("customer_table", "RIVERCHAT_CUSTOMER_TABLE")
	mustBind("voice_base_url", "RIVERCHAT_VOICE_BASE_URL")
	mustBind("voice_api_key", "RIVERCHAT_VOICE_API_KEY")
	mustBind("fallback_number", "RIVERCHAT_FALLBACK_NUMBER")
	mustBind("server_addr", "RIVERCHAT_SERVER_ADDR")

	// NOTE: AWS credentials are read by the SDK's default chain, not via
	// Viper. Only the region is surfaced here.
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON masks sensitive fields so Config can be logged safely.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(*c)
	if masked.VoiceAPIKey != "" {
		masked.VoiceAPIKey = maskedValue
	}
	return json.Marshal(masked)
}

// Validate checks baseline configuration invariants shared by every
// command.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.Region == "" {
		return ErrMissingRegion
	}
	if c.ModelID == "" {
		return ErrMissingModel
	}
	if c.MaxHistoryMessages < 0 || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("%w: %d (allowed 0-%d)", ErrInvalidHistoryLimit,
			c.MaxHistoryMessages, MaxAllowedHistoryMessages)
	}
	for name, d := range map[string]time.Duration{
		"retrieve_timeout": c.RetrieveTimeout,
		"generate_timeout": c.GenerateTimeout,
		"store_timeout":    c.StoreTimeout,
		"call_timeout":     c.CallTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidTimeout, name)
		}
	}
	return nil
}

// ValidateServe checks the additional requirements of the chat service:
// every external collaborator must be addressable.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.KnowledgeBaseID == "" {
		return ErrMissingKnowledgeBase
	}
	if c.CustomerTable == "" {
		return ErrMissingCustomerTable
	}
	if c.VoiceAPIKey == "" {
		return ErrMissingVoiceAPIKey
	}
	return nil
}
