package eocustom

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-eosso/pkg/signature"
)

const (
	// DefaultName is the strategy name used for registration and routing.
	DefaultName = "eo_custom"

	// DefaultSite is the production EO API host.
	DefaultSite = "https://api.eonetwork.org"

	// DefaultTimeout bounds every outbound call.
	DefaultTimeout = 5 * time.Second

	// Placeholder is the value of every credential in DefaultConfig.
	// Validate rejects it so integrators must supply real values.
	Placeholder = "MUST_BE_PROVIDED"
)

// Config contains the strategy configuration. It is validated once by
// NewStrategy and must not be modified afterwards.
type Config struct {
	// Name is the strategy name (defaults to eo_custom).
	Name string `yaml:"name"`

	// AuthenticationURL is the external login page users are redirected to.
	AuthenticationURL string `yaml:"authentication_url"`

	// Site is the API base URL.
	Site string `yaml:"site"`

	// ClientID identifies this integration to the EO API.
	ClientID string `yaml:"client_id"`

	// SecretKey is the base64-encoded shared secret used for signatures.
	SecretKey string `yaml:"secret_key"`

	// Username and Password authenticate the v3 password grant.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Concurrent runs the member detail lookup and the custom field lookup
	// in parallel once the token exchange succeeds.
	Concurrent bool `yaml:"concurrent"`

	// TLSConfig allows custom TLS configuration.
	TLSConfig *tls.Config `yaml:"-"`

	// InsecureSkipVerify disables TLS certificate verification (not recommended).
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// DefaultConfig returns the documented defaults. Every credential is set to
// Placeholder and must be overridden.
func DefaultConfig() Config {
	return Config{
		Name:              DefaultName,
		AuthenticationURL: Placeholder,
		Site:              DefaultSite,
		ClientID:          Placeholder,
		SecretKey:         Placeholder,
		Username:          Placeholder,
		Password:          Placeholder,
		Timeout:           DefaultTimeout,
		Concurrent:        true,
	}
}

// Validate checks the configuration and fills in defaults for Name, Site and
// Timeout on c itself. It also trims trailing slashes from Site.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultName
	}
	if strings.TrimSpace(c.Site) == "" {
		c.Site = DefaultSite
	}
	c.Site = strings.TrimRight(c.Site, "/")

	required := []struct {
		name  string
		value string
	}{
		{"authentication_url", c.AuthenticationURL},
		{"client_id", c.ClientID},
		{"secret_key", c.SecretKey},
		{"username", c.Username},
		{"password", c.Password},
	}
	for _, field := range required {
		v := strings.TrimSpace(field.value)
		if v == "" || v == Placeholder {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfiguration, field.name)
		}
	}

	if err := validateAbsoluteURL("site", c.Site); err != nil {
		return err
	}
	if err := validateAbsoluteURL("authentication_url", c.AuthenticationURL); err != nil {
		return err
	}

	if _, err := signature.DecodeKey(c.SecretKey); err != nil {
		return fmt.Errorf("%w: secret_key: %v", ErrInvalidConfiguration, err)
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	return nil
}

func validateAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s must be an absolute http(s) url", ErrInvalidConfiguration, name)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s has no host", ErrInvalidConfiguration, name)
	}
	return nil
}
