package config

import (
	"errors"
	"fmt"
	"strings"
)

// PrometheusConfig configures Prometheus metrics export. Its presence in
// the config file enables the metrics listener.
type PrometheusConfig struct {
	// Listen is the address the metrics HTTP server binds, e.g. ":9090".
	// It is always a separate listener from the main gateway's, so
	// /metrics can never shadow one of the gateway's own URIs.
	Listen string `json:"listen,omitempty"`

	// Path is the HTTP path serving metrics. Default: "/metrics".
	Path string `json:"path,omitempty"`

	// ExtraLabels adds fixed labels to every metric.
	ExtraLabels map[string]string `json:"extra_labels,omitempty"`
}

// GetListen returns the listen address, defaulting to ":9090".
func (c *PrometheusConfig) GetListen() string {
	if c == nil || c.Listen == "" {
		return ":9090"
	}
	return c.Listen
}

// GetPath returns the metrics path, defaulting to "/metrics".
func (c *PrometheusConfig) GetPath() string {
	if c == nil || c.Path == "" {
		return "/metrics"
	}
	return c.Path
}

// Validate checks the listen address and path are well formed.
func (c *PrometheusConfig) Validate() error {
	var errs []error
	listen := c.GetListen()
	if !strings.Contains(listen, ":") {
		errs = append(errs, fmt.Errorf("listen address %q must contain a port", listen))
	}
	path := c.GetPath()
	if !strings.HasPrefix(path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with '/'", path))
	}
	return errors.Join(errs...)
}

// ParsePrometheusListen parses the -metrics-listen CLI flag, which accepts
// "host:port" or "host:port/path", defaulting path to "/metrics".
func ParsePrometheusListen(listen string) *PrometheusConfig {
	if listen == "" {
		return nil
	}
	parts := strings.SplitN(listen, "/", 2)
	path := "/metrics"
	if len(parts) > 1 {
		path = "/" + parts[1]
	}
	return &PrometheusConfig{Listen: parts[0], Path: path}
}
