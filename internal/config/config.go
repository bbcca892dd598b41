package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/andresmejia3/facesignal/internal/classifier"
	"github.com/andresmejia3/facesignal/internal/landmark"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Frame      FrameConfig           `yaml:"frame"`
	Epsilon    float64               `yaml:"epsilon" validate:"gt=0"`
	Thresholds classifier.Thresholds `yaml:"thresholds"`
	Log        LogConfig             `yaml:"log"`
	// DatabaseURL enables the Postgres event recorder when set.
	DatabaseURL string `yaml:"-"`
}

type FrameConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File  string `yaml:"file"`
}

var validate = validator.New()

// Defaults returns the embedded configuration without consulting the environment.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// Embedded file; only a broken build gets here.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load reads the optional .env file, then applies environment overrides on top of
// the embedded defaults. With an empty envFile a missing ./.env is ignored; a named
// file must exist.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		// .env file is optional, don't fail if not found
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := Defaults()

	floats := []struct {
		key string
		dst *float64
	}{
		{"FACESIGNAL_FRAME_WIDTH", &cfg.Frame.Width},
		{"FACESIGNAL_FRAME_HEIGHT", &cfg.Frame.Height},
		{"FACESIGNAL_EPSILON", &cfg.Epsilon},
		{"FACESIGNAL_EYE_THRESHOLD", &cfg.Thresholds.Eye},
		{"FACESIGNAL_HEAD_RIGHT", &cfg.Thresholds.HeadRight},
		{"FACESIGNAL_HEAD_LEFT", &cfg.Thresholds.HeadLeft},
		{"FACESIGNAL_HEAD_DOWN", &cfg.Thresholds.HeadDown},
		{"FACESIGNAL_HEAD_UP", &cfg.Thresholds.HeadUp},
	}
	for _, f := range floats {
		if err := envFloat(f.key, f.dst); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("FACESIGNAL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FACESIGNAL_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	return cfg, nil
}

// envFloat overwrites dst when key is set. A set but unparsable value is an error
// rather than a silent fallback.
func envFloat(key string, dst *float64) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", key, s, err)
	}
	*dst = v
	return nil
}

// Validate checks the configuration before any session starts. Bad frame
// dimensions are reported as landmark.ErrInvalidDimensions.
func (c *Config) Validate() error {
	if err := landmark.ValidateDimensions(c.Frame.Width, c.Frame.Height); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	return nil
}
