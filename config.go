package fluxclient

import (
	"fmt"
	"log/slog"
	"net/url"
)

const (
	defaultMaxLineBytes = 1 << 20
	defaultMaxErrorBody = 64 * 1024
	defaultUserAgent    = "fluxclient"
)

// ConfigError is returned by [Config.Validate] and by [NewClient] when a
// configuration field fails structural validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Reason)
}

// Config holds the settings needed to construct a [Client]. The zero value
// is not valid; construct one with field literals and call [Config.Validate]
// (or simply call [NewClient], which validates internally).
type Config struct {
	// BaseURL is the scheme+host+port of the database server, e.g.
	// "https://influx.example.com:8086".
	BaseURL string
	// Org is the organization identifier sent as the org query parameter.
	Org string
	// Token is the bearer token sent as "Authorization: Token <token>".
	Token string

	// Driver issues HTTP requests; nil selects the default *http.Client
	// driver.
	Driver Driver

	// MaxLineBytes bounds the line framer's buffer. Zero selects the
	// default (1 MiB).
	MaxLineBytes int
	// MaxErrorBody bounds how much of an error response body is read.
	// Zero selects the default (64 KiB).
	MaxErrorBody int

	// Logger receives diagnostic (never error) log records. Nil disables
	// logging.
	Logger *slog.Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// Validate checks c for structural problems that would make every query
// fail, so callers can catch a misconfiguration before issuing a request.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return &ConfigError{Field: "BaseURL", Reason: "must not be empty"}
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return &ConfigError{Field: "BaseURL", Reason: err.Error()}
	}
	if u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "BaseURL", Reason: "must be an absolute URL with scheme and host"}
	}
	if c.Org == "" {
		return &ConfigError{Field: "Org", Reason: "must not be empty"}
	}
	if c.Token == "" {
		return &ConfigError{Field: "Token", Reason: "must not be empty"}
	}
	if c.MaxLineBytes < 0 {
		return &ConfigError{Field: "MaxLineBytes", Reason: "must not be negative"}
	}
	if c.MaxErrorBody < 0 {
		return &ConfigError{Field: "MaxErrorBody", Reason: "must not be negative"}
	}
	return nil
}

func (c Config) maxLineBytes() int {
	if c.MaxLineBytes == 0 {
		return defaultMaxLineBytes
	}
	return c.MaxLineBytes
}

func (c Config) maxErrorBody() int {
	if c.MaxErrorBody == 0 {
		return defaultMaxErrorBody
	}
	return c.MaxErrorBody
}

func (c Config) userAgent() string {
	if c.UserAgent == "" {
		return defaultUserAgent
	}
	return c.UserAgent
}
