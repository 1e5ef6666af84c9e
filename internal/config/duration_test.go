package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalString(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	require.Equal(t, 90*time.Second, d.Duration())
}

func TestDurationUnmarshalNumber(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`90`), &d))
	require.Equal(t, 90*time.Second, d.Duration())
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration
	require.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
}

func TestDurationMarshal(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"1m30s"`, string(data))
}

func TestConfigSessionTimeoutOverride(t *testing.T) {
	cfg, err := Parse([]byte(`{"session_timeout":"120s"}`))
	require.NoError(t, err)
	require.NotNil(t, cfg.SessionTimeout)
	require.Equal(t, 120*time.Second, cfg.SessionTimeout.Duration())
}
