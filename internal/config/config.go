package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Inference InferenceConfig
	Retry     RetryConfig
	Workspace WorkspaceConfig
	Defaults  GenerationDefaults
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	UploadMaxBytes int64
}

type LoggerConfig struct {
	Level  string
	Format string
}

// InferenceConfig describes the hosted Gradio space that performs reconstruction.
type InferenceConfig struct {
	URL          string
	APIName      string
	Token        string
	Timeout      time.Duration // 0 means no client-side timeout
	ProbeEnabled bool
	ProbeTimeout time.Duration
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

type WorkspaceConfig struct {
	UploadDir       string
	OutputDir       string
	TempDir         string
	CanonicalFormat string // "png", "jpeg" or "" to keep the upload as is
}

type GenerationDefaults struct {
	RemoveBackground bool
	Seed             int
	GenerateVideo    bool
	RefineDetails    bool
	ExpansionWeight  float64
	MeshInit         string
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	v.SetDefault("HF_TOKEN", "")
	v.SetDefault("INFERENCE_URL", "https://wuvin-unique3d.hf.space")
	v.SetDefault("INFERENCE_API_NAME", "/generate3dv2")
	v.SetDefault("INFERENCE_TIMEOUT", "0s")
	v.SetDefault("INFERENCE_PROBE_ENABLED", true)
	v.SetDefault("INFERENCE_PROBE_TIMEOUT", "5s")

	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_BASE_DELAY", "2s")
	v.SetDefault("RETRY_MAX_DELAY", "60s")
	v.SetDefault("RETRY_MULTIPLIER", 2.0)

	v.SetDefault("WORKSPACE_UPLOAD_DIR", "uploads")
	v.SetDefault("WORKSPACE_OUTPUT_DIR", "outputs")
	v.SetDefault("WORKSPACE_TEMP_DIR", "")
	v.SetDefault("IMAGE_CANONICAL_FORMAT", "png")

	v.SetDefault("DEFAULT_REMOVE_BACKGROUND", true)
	v.SetDefault("DEFAULT_SEED", 40)
	v.SetDefault("DEFAULT_GENERATE_VIDEO", false)
	v.SetDefault("DEFAULT_REFINE_DETAILS", true)
	v.SetDefault("DEFAULT_EXPANSION_WEIGHT", 0.2)
	v.SetDefault("DEFAULT_MESH_INIT", "thin")

	v.SetDefault("METRICS_ENABLED", true)

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Inference: InferenceConfig{
			URL:          strings.TrimRight(v.GetString("INFERENCE_URL"), "/"),
			APIName:      v.GetString("INFERENCE_API_NAME"),
			Token:        v.GetString("HF_TOKEN"),
			Timeout:      v.GetDuration("INFERENCE_TIMEOUT"),
			ProbeEnabled: v.GetBool("INFERENCE_PROBE_ENABLED"),
			ProbeTimeout: v.GetDuration("INFERENCE_PROBE_TIMEOUT"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("RETRY_MAX_ATTEMPTS"),
			BaseDelay:   v.GetDuration("RETRY_BASE_DELAY"),
			MaxDelay:    v.GetDuration("RETRY_MAX_DELAY"),
			Multiplier:  v.GetFloat64("RETRY_MULTIPLIER"),
		},
		Workspace: WorkspaceConfig{
			UploadDir:       v.GetString("WORKSPACE_UPLOAD_DIR"),
			OutputDir:       v.GetString("WORKSPACE_OUTPUT_DIR"),
			TempDir:         v.GetString("WORKSPACE_TEMP_DIR"),
			CanonicalFormat: strings.ToLower(v.GetString("IMAGE_CANONICAL_FORMAT")),
		},
		Defaults: GenerationDefaults{
			RemoveBackground: v.GetBool("DEFAULT_REMOVE_BACKGROUND"),
			Seed:             v.GetInt("DEFAULT_SEED"),
			GenerateVideo:    v.GetBool("DEFAULT_GENERATE_VIDEO"),
			RefineDetails:    v.GetBool("DEFAULT_REFINE_DETAILS"),
			ExpansionWeight:  v.GetFloat64("DEFAULT_EXPANSION_WEIGHT"),
			MeshInit:         v.GetString("DEFAULT_MESH_INIT"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Inference.URL == "" {
		return errors.New("INFERENCE_URL is required")
	}
	if !strings.HasPrefix(c.Inference.APIName, "/") {
		return fmt.Errorf("INFERENCE_API_NAME must start with '/': %q", c.Inference.APIName)
	}
	if c.Inference.ProbeEnabled && c.Inference.ProbeTimeout <= 0 {
		return errors.New("INFERENCE_PROBE_TIMEOUT must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("RETRY_MULTIPLIER must be >= 1")
	}
	if c.Workspace.OutputDir == "" || c.Workspace.UploadDir == "" {
		return errors.New("workspace directories are required")
	}
	switch c.Workspace.CanonicalFormat {
	case "", "png", "jpeg":
	default:
		return fmt.Errorf("unsupported IMAGE_CANONICAL_FORMAT %q", c.Workspace.CanonicalFormat)
	}
	if c.Server.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}
