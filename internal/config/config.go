// Package config loads lastframe settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Tolerance float64 `env:"LASTFRAME_TOLERANCE"  envDefault:"40"     validate:"gte=0"`
	OutputDir string  `env:"LASTFRAME_OUTPUT_DIR" envDefault:"tmp"    validate:"required"`
	Decoder   string  `env:"LASTFRAME_DECODER"    envDefault:"ffmpeg" validate:"oneof=ffmpeg gocv"`

	// Manifest appends every result to {OutputDir}/last_frames.json.
	Manifest    bool   `env:"LASTFRAME_MANIFEST"     envDefault:"false"`
	DatabaseURL string `env:"LASTFRAME_DATABASE_URL"`
	MetricsFile string `env:"LASTFRAME_METRICS_FILE"`

	// OllamaURL and OllamaPort are only used for the liveness check. The
	// pinned ollama provider always connects to http://localhost:11434.
	Describe    bool   `env:"LASTFRAME_DESCRIBE"     envDefault:"false"`
	OllamaURL   string `env:"LASTFRAME_OLLAMA_URL"   envDefault:"http://localhost" validate:"required_if=Describe true"`
	OllamaPort  int    `env:"LASTFRAME_OLLAMA_PORT"  envDefault:"11434"            validate:"gt=0,lte=65535"`
	OllamaModel string `env:"LASTFRAME_OLLAMA_MODEL" envDefault:"llama3.2-vision:11b"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Load reads .env files (default ".env", missing files are ignored), then the
// process environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Call it again after applying overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
