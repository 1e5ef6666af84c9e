package config

// OpenTelemetryConfig configures the OpenTelemetry tracer provider and
// exporter. Unlike the wire-protocol proxy this was grounded on, arrayshim
// has no SQL comment channel to pull trace context from. The provider and
// a W3C trace-context propagator are registered globally; the HTTP
// handlers and the query pipeline do not extract incoming trace context or
// create spans of their own.
type OpenTelemetryConfig struct {
	// Enabled enables tracing. Default: false.
	Enabled bool `json:"enabled,omitempty"`

	// ServiceName is the service name reported in traces. Default: "arrayshim".
	ServiceName string `json:"service_name,omitempty"`

	// OTLPEndpoint is the OTLP collector endpoint. If unset, the
	// OTEL_EXPORTER_OTLP_ENDPOINT environment variable is used.
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`

	// OTLPProtocol selects "grpc" (default) or "http".
	OTLPProtocol string `json:"otlp_protocol,omitempty"`

	// SamplingRate is the fraction of requests traced, 0.0-1.0. Default: 1.0.
	SamplingRate *float64 `json:"sampling_rate,omitempty"`

	// IncludeQueryText is parsed from the config file; no code path reads
	// it, and no span carries the query text. Off by default.
	IncludeQueryText bool `json:"include_query_text,omitempty"`
}

// GetServiceName returns the configured service name, defaulting to "arrayshim".
func (c *OpenTelemetryConfig) GetServiceName() string {
	if c == nil || c.ServiceName == "" {
		return "arrayshim"
	}
	return c.ServiceName
}

// GetOTLPProtocol returns the configured protocol, defaulting to "grpc".
func (c *OpenTelemetryConfig) GetOTLPProtocol() string {
	if c == nil || c.OTLPProtocol == "" {
		return "grpc"
	}
	return c.OTLPProtocol
}

// GetSamplingRate returns the configured sampling rate, defaulting to 1.0.
func (c *OpenTelemetryConfig) GetSamplingRate() float64 {
	if c == nil || c.SamplingRate == nil {
		return 1.0
	}
	return *c.SamplingRate
}
