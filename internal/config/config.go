package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/koscakluka/ema-edge/core/realtime"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the complete client configuration.
type Config struct {
	Realtime  RealtimeConfig         `yaml:"realtime" json:"realtime"`
	Session   realtime.SessionConfig `yaml:"session" json:"session"`
	Audio     AudioConfig            `yaml:"audio" json:"audio"`
	Chunking  ChunkingConfig         `yaml:"chunking" json:"chunking"`
	Display   DisplayConfig          `yaml:"display" json:"display"`
	Logging   LoggingConfig          `yaml:"logging" json:"logging"`
	Status    StatusConfig           `yaml:"status" json:"status"`
	Reconnect ReconnectConfig        `yaml:"reconnect" json:"reconnect"`
}

// RealtimeConfig locates the realtime service.
type RealtimeConfig struct {
	Provider   string `yaml:"provider" json:"provider" jsonschema:"enum=azure,enum=openai"`
	Endpoint   string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	APIVersion string `yaml:"api_version,omitempty" json:"api_version,omitempty"`
	Deployment string `yaml:"deployment,omitempty" json:"deployment,omitempty"`
	Model      string `yaml:"model,omitempty" json:"model,omitempty"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	// URL is used verbatim and overrides the provider settings.
	URL              string        `yaml:"url,omitempty" json:"url,omitempty"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

type AudioConfig struct {
	Backend         string `yaml:"backend" json:"backend" jsonschema:"enum=miniaudio,enum=portaudio"`
	SampleRate      int    `yaml:"sample_rate" json:"sample_rate"`
	CaptureChannels int    `yaml:"capture_channels" json:"capture_channels" jsonschema:"enum=1,enum=2"`
	// PeriodFrames is the number of frames per capture callback.
	PeriodFrames   int    `yaml:"period_frames" json:"period_frames"`
	CaptureDevice  string `yaml:"capture_device,omitempty" json:"capture_device,omitempty"`
	PlaybackDevice string `yaml:"playback_device,omitempty" json:"playback_device,omitempty"`
}

type ChunkingConfig struct {
	Mode            string `yaml:"mode" json:"mode" jsonschema:"enum=fixed-batch,enum=dynamic-batch,enum=pass-through"`
	PacketThreshold int    `yaml:"packet_threshold" json:"packet_threshold"`
	GrowBy          int    `yaml:"grow_by" json:"grow_by"`
	Priming         string `yaml:"priming" json:"priming" jsonschema:"enum=discard-frame,enum=strip-header,enum=none"`
	PrimingBytes    int    `yaml:"priming_bytes" json:"priming_bytes"`
}

type DisplayConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	MaxTextLength   int           `yaml:"max_text_length" json:"max_text_length"`
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format" jsonschema:"enum=text,enum=json"`
	// File receives the logs; empty means stderr, or ema-edge.log while
	// the terminal display is active.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// StatusConfig configures the local health and metrics server.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

type ReconnectConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	// MaxAttempts of 0 retries forever.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// Load reads the configuration and validates it.
func Load(path, envFile string) (*Config, error) {
	config, err := Read(path, envFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Read builds the configuration from defaults, the YAML file at path (if
// any), the env file and finally the environment, without validating it.
func Read(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		// Load .env file if it exists (doesn't error if missing)
		_ = godotenv.Load()
	}

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnv(os.LookupEnv)
	return config, nil
}

const (
	EnvAPIKey     = "EMA_REALTIME_API_KEY"
	EnvEndpoint   = "EMA_REALTIME_ENDPOINT"
	EnvDeployment = "EMA_REALTIME_DEPLOYMENT"
	EnvURL        = "EMA_REALTIME_URL"
	EnvLogLevel   = "EMA_LOG_LEVEL"
)

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvAPIKey, &c.Realtime.APIKey},
		{EnvEndpoint, &c.Realtime.Endpoint},
		{EnvDeployment, &c.Realtime.Deployment},
		{EnvURL, &c.Realtime.URL},
		{EnvLogLevel, &c.Logging.Level},
	}
	for _, override := range overrides {
		if value, ok := lookup(override.key); ok && value != "" {
			*override.target = value
		}
	}
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	redacted := *c
	if redacted.Realtime.APIKey != "" {
		redacted.Realtime.APIKey = "REDACTED"
	}
	if redacted.Realtime.URL != "" {
		redacted.Realtime.URL = realtime.Redact(redacted.Realtime.URL)
	}
	return &redacted
}
