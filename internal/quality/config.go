// Package quality watches completed analyses and alerts on poor fits.
package quality

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines quality watch configuration.
type Config struct {
	MinRSquared float64
	WebhookURL  string
	Template    string
	Cooldown    time.Duration
}

// fileConfig is the yaml shape of Config. Cooldown accepts Go
// duration strings such as "10m".
type fileConfig struct {
	MinRSquared float64 `yaml:"min_r_squared"`
	WebhookURL  string  `yaml:"webhook_url"`
	Template    string  `yaml:"template"`
	Cooldown    string  `yaml:"cooldown"`
}

// LoadConfig loads config from yaml or env. The yaml file named by
// QUALITY_CONFIG wins over individual env variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		MinRSquared: getenvFloatDefault("QUALITY_MIN_R2", 0.95),
		WebhookURL:  os.Getenv("QUALITY_WEBHOOK_URL"),
		Cooldown:    getenvDurationDefault("QUALITY_COOLDOWN", 10*time.Minute),
	}

	if path := os.Getenv("QUALITY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, err
		}
		if file.MinRSquared > 0 {
			cfg.MinRSquared = file.MinRSquared
		}
		if file.WebhookURL != "" {
			cfg.WebhookURL = file.WebhookURL
		}
		if file.Template != "" {
			cfg.Template = file.Template
		}
		if file.Cooldown != "" {
			parsed, err := time.ParseDuration(file.Cooldown)
			if err != nil {
				return cfg, fmt.Errorf("quality: parse cooldown: %w", err)
			}
			cfg.Cooldown = parsed
		}
	}

	if cfg.MinRSquared <= 0 || cfg.MinRSquared > 1 {
		cfg.MinRSquared = 0.95
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Minute
	}
	return cfg, nil
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
