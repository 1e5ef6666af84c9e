package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrometheusConfigDefaults(t *testing.T) {
	var c *PrometheusConfig
	require.Equal(t, ":9090", c.GetListen())
	require.Equal(t, "/metrics", c.GetPath())
}

func TestPrometheusConfigValidate(t *testing.T) {
	require.NoError(t, (&PrometheusConfig{Listen: ":9090", Path: "/metrics"}).Validate())
	require.Error(t, (&PrometheusConfig{Listen: "nope", Path: "/metrics"}).Validate())
	require.Error(t, (&PrometheusConfig{Listen: ":9090", Path: "metrics"}).Validate())
}

func TestParsePrometheusListen(t *testing.T) {
	require.Nil(t, ParsePrometheusListen(""))

	c := ParsePrometheusListen(":9091")
	require.Equal(t, ":9091", c.Listen)
	require.Equal(t, "/metrics", c.Path)

	c = ParsePrometheusListen(":9091/stats")
	require.Equal(t, ":9091", c.Listen)
	require.Equal(t, "/stats", c.Path)
}
