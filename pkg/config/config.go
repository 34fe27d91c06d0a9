// Package config loads eocustom strategy configuration from a YAML file and
// the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jeremyhahn/go-eosso/pkg/eocustom"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAuthenticationURL = "EO_AUTHENTICATION_URL"
	EnvSite              = "EO_SITE"
	EnvClientID          = "EO_CLIENT_ID"
	EnvSecretKey         = "EO_SECRET_KEY"
	EnvUsername          = "EO_USERNAME"
	EnvPassword          = "EO_PASSWORD"
	EnvTimeout           = "EO_TIMEOUT"
	EnvConcurrent        = "EO_CONCURRENT"
)

// LoadDotEnv loads the given .env files into the process environment. With
// no arguments it loads ".env" from the working directory. Missing files
// are ignored and variables already set are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return nil
}

// Load returns eocustom.DefaultConfig overlaid with the YAML file at path and
// then with EO_* environment variables. An empty path skips the file. The
// result is not validated; eocustom.NewStrategy does that.
func Load(path string) (*eocustom.Config, error) {
	config := eocustom.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", eocustom.ErrInvalidConfiguration, path, err)
		}
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnv(config *eocustom.Config) error {
	for key, field := range map[string]*string{
		EnvAuthenticationURL: &config.AuthenticationURL,
		EnvSite:              &config.Site,
		EnvClientID:          &config.ClientID,
		EnvSecretKey:         &config.SecretKey,
		EnvUsername:          &config.Username,
		EnvPassword:          &config.Password,
	} {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", eocustom.ErrInvalidConfiguration, EnvTimeout, err)
		}
		config.Timeout = d
	}

	if v := os.Getenv(EnvConcurrent); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", eocustom.ErrInvalidConfiguration, EnvConcurrent, err)
		}
		config.Concurrent = b
	}

	return nil
}
