package config

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestTLSConfigValidateDisabledByDefault(t *testing.T) {
	c := &TLSConfig{}
	require.NoError(t, c.Validate(fstest.MapFS{}))
	require.False(t, c.Enabled())
	require.False(t, c.Required())
}

func TestTLSConfigValidateRejectsUnknownMode(t *testing.T) {
	c := &TLSConfig{SSLMode: "bogus"}
	require.Error(t, c.Validate(fstest.MapFS{}))
}

func TestTLSConfigValidateRequiresCertOrGenerate(t *testing.T) {
	c := &TLSConfig{SSLMode: SSLModeRequire}
	require.Error(t, c.Validate(fstest.MapFS{}))
}

func TestTLSConfigValidateAllowsGenerateCertAlone(t *testing.T) {
	c := &TLSConfig{SSLMode: SSLModeRequire, GenerateCert: true}
	require.NoError(t, c.Validate(fstest.MapFS{}))
	require.True(t, c.Enabled())
	require.True(t, c.Required())
}

func TestTLSConfigValidateMismatchedCertPaths(t *testing.T) {
	c := &TLSConfig{SSLMode: SSLModePrefer, CertPath: "cert.pem"}
	require.Error(t, c.Validate(fstest.MapFS{}))
}

func TestTLSConfigValidateMissingCertFile(t *testing.T) {
	c := &TLSConfig{SSLMode: SSLModePrefer, CertPath: "cert.pem", CertPrivateKeyPath: "key.pem"}
	require.Error(t, c.Validate(fstest.MapFS{}))
}

func TestNewTLSGeneratesSelfSignedCert(t *testing.T) {
	c := &TLSConfig{SSLMode: SSLModeRequire, GenerateCert: true}
	result, err := c.NewTLS(fstest.MapFS{}, func(p string) string { return p })
	require.NoError(t, err)
	require.NotNil(t, result.Config)
	require.Len(t, result.Config.Certificates, 1)
	require.Empty(t, result.WrittenFiles)
}

func TestNewTLSDisabledReturnsEmptyResult(t *testing.T) {
	c := &TLSConfig{}
	result, err := c.NewTLS(fstest.MapFS{}, func(p string) string { return p })
	require.NoError(t, err)
	require.Nil(t, result.Config)
}
