// Package config handles interpreting the optional arrayshim JSON config
// file that carries ambient settings (TLS, default backend credentials,
// metrics, tracing) not covered by the plain CLI flag surface.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Config holds arrayshim's ambient configuration. Every field is optional:
// a process started with no -config flag at all runs with none of these
// features enabled, matching the plain CLI-flag-only contract.
type Config struct {
	TLS                *TLSConfig           `json:"tls,omitempty"`
	Prometheus         *PrometheusConfig    `json:"prometheus,omitempty"`
	OpenTelemetry      *OpenTelemetryConfig `json:"opentelemetry,omitempty"`
	BackendCredentials *CredentialConfig    `json:"backend_credentials,omitempty"`

	// SessionTimeout overrides the -o flag's session timeout when set,
	// letting an operator tune reaping without restarting with a new flag.
	SessionTimeout *Duration `json:"session_timeout,omitempty"`
}

// CredentialConfig supplies the username/password arrayshim dials the
// backend with when a /new_session request omits them.
type CredentialConfig struct {
	Username SecretRef `json:"username"`
	Password SecretRef `json:"password"`
}

// Parse parses a JSON configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReadFile reads and parses a configuration file from the given path.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Validate checks that every secret reference the config carries is
// resolvable, and that the TLS and Prometheus sub-configs are internally
// consistent. fsys resolves TLS's cert_path/cert_private_key_path. It
// accumulates every error rather than stopping at the first.
func (c *Config) Validate(ctx context.Context, secrets *SecretCache, fsys fs.FS) error {
	var errs []error

	if c.TLS != nil {
		if err := c.TLS.Validate(fsys); err != nil {
			errs = append(errs, fmt.Errorf("tls: %w", err))
		}
	}

	if c.Prometheus != nil {
		if err := c.Prometheus.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("prometheus: %w", err))
		}
	}

	if c.BackendCredentials != nil {
		if secrets == nil {
			errs = append(errs, errors.New("backend_credentials configured but no secrets cache is available"))
		} else {
			if _, err := secrets.Get(ctx, c.BackendCredentials.Username); err != nil {
				errs = append(errs, fmt.Errorf("backend_credentials.username: %w", err))
			}
			if _, err := secrets.Get(ctx, c.BackendCredentials.Password); err != nil {
				errs = append(errs, fmt.Errorf("backend_credentials.password: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}
