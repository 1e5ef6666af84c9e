package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"os"
	"time"
)

// SSLMode controls whether the gateway's HTTP listener requires,
// prefers, or disables TLS for incoming client connections.
type SSLMode string

const (
	SSLModeDisable SSLMode = "disable"
	SSLModeAllow   SSLMode = "allow"
	SSLModePrefer  SSLMode = "prefer"
	SSLModeRequire SSLMode = "require"
)

// TLSConfig configures TLS for the main HTTP listener.
type TLSConfig struct {
	SSLMode SSLMode `json:"sslmode,omitempty"`

	CertPath           string `json:"cert_path,omitempty"`
	CertPrivateKeyPath string `json:"cert_private_key_path,omitempty"`

	// GenerateCert enables automatic self-signed certificate generation.
	// If CertPath/CertPrivateKeyPath are also set, the generated cert is
	// written there unless they already exist.
	GenerateCert bool `json:"generate_cert,omitempty"`
}

// Validate checks the TLS configuration is internally consistent. fsys is
// used to check that configured certificate files actually exist.
func (c *TLSConfig) Validate(fsys fs.FS) error {
	mode := c.SSLMode
	if mode == "" {
		mode = SSLModeDisable
	}

	switch mode {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer, SSLModeRequire:
	default:
		return fmt.Errorf("invalid sslmode %q: must be one of: disable, allow, prefer, require", c.SSLMode)
	}

	if mode == SSLModeDisable {
		return nil
	}

	hasCertPath := c.CertPath != ""
	hasKeyPath := c.CertPrivateKeyPath != ""
	if hasCertPath != hasKeyPath {
		return errors.New("cert_path and cert_private_key_path must both be set or both be empty")
	}
	hasCertPaths := hasCertPath && hasKeyPath

	if !hasCertPaths && !c.GenerateCert {
		return errors.New("TLS enabled but no certificate configured: set cert_path and cert_private_key_path, or set generate_cert")
	}

	if !c.GenerateCert && hasCertPaths {
		if _, err := fs.Stat(fsys, c.CertPath); err != nil {
			return fmt.Errorf("cert_path %q: %w", c.CertPath, err)
		}
		if _, err := fs.Stat(fsys, c.CertPrivateKeyPath); err != nil {
			return fmt.Errorf("cert_private_key_path %q: %w", c.CertPrivateKeyPath, err)
		}
	}
	return nil
}

// Enabled returns true if TLS is requested in any form.
func (c *TLSConfig) Enabled() bool {
	switch c.SSLMode {
	case SSLModeAllow, SSLModePrefer, SSLModeRequire:
		return true
	default:
		return false
	}
}

// Required returns true if plaintext connections must be rejected.
func (c *TLSConfig) Required() bool {
	return c.SSLMode == SSLModeRequire
}

// TLSResult is the outcome of building a tls.Config.
type TLSResult struct {
	Config       *tls.Config
	WrittenFiles []string
}

// NewTLS builds a tls.Config per c, generating or loading certificates as
// configured. resolvePath turns a relative cert path into one suitable
// for writing a freshly-generated certificate to disk.
func (c *TLSConfig) NewTLS(fsys fs.FS, resolvePath func(string) string) (TLSResult, error) {
	if !c.Enabled() {
		return TLSResult{}, nil
	}

	var cert tls.Certificate
	var err error
	var written []string

	if c.GenerateCert {
		hasCertPaths := c.CertPath != "" && c.CertPrivateKeyPath != ""
		certExists := hasCertPaths && fileExistsFS(fsys, c.CertPath)
		keyExists := hasCertPaths && fileExistsFS(fsys, c.CertPrivateKeyPath)

		if hasCertPaths && certExists && keyExists {
			cert, err = loadX509KeyPairFS(fsys, c.CertPath, c.CertPrivateKeyPath)
			if err != nil {
				return TLSResult{}, fmt.Errorf("failed to load certificate: %w", err)
			}
		} else {
			cert, err = generateSelfSignedCert()
			if err != nil {
				return TLSResult{}, fmt.Errorf("failed to generate self-signed certificate: %w", err)
			}
			if hasCertPaths && !certExists && !keyExists {
				certAbs := resolvePath(c.CertPath)
				keyAbs := resolvePath(c.CertPrivateKeyPath)
				if err := writeCertToFiles(cert, certAbs, keyAbs); err != nil {
					return TLSResult{}, fmt.Errorf("failed to write certificate to files: %w", err)
				}
				written = []string{certAbs, keyAbs}
			}
		}
	} else {
		cert, err = loadX509KeyPairFS(fsys, c.CertPath, c.CertPrivateKeyPath)
		if err != nil {
			return TLSResult{}, fmt.Errorf("failed to load certificate: %w", err)
		}
	}

	return TLSResult{
		Config: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		WrittenFiles: written,
	}, nil
}

func fileExistsFS(fsys fs.FS, path string) bool {
	info, err := fs.Stat(fsys, path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func loadX509KeyPairFS(fsys fs.FS, certPath, keyPath string) (tls.Certificate, error) {
	certPEM, err := fs.ReadFile(fsys, certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read cert file: %w", err)
	}
	keyPEM, err := fs.ReadFile(fsys, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read key file: %w", err)
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

func writeCertToFiles(cert tls.Certificate, certPath, keyPath string) (err error) {
	certOut, err := os.Create(certPath)
	if err != nil {
		return fmt.Errorf("failed to create cert file: %w", err)
	}
	defer func() {
		if cerr := certOut.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close cert file: %w", cerr)
		}
	}()
	for _, certBytes := range cert.Certificate {
		if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certBytes}); err != nil {
			return fmt.Errorf("failed to write cert: %w", err)
		}
	}

	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer func() {
		if kerr := keyOut.Close(); kerr != nil && err == nil {
			err = fmt.Errorf("failed to close key file: %w", kerr)
		}
	}()

	privKey, ok := cert.PrivateKey.(*ecdsa.PrivateKey)
	if !ok {
		return errors.New("private key is not ECDSA")
	}
	privDER, err := x509.MarshalECPrivateKey(privKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})
}

// generateSelfSignedCert creates a self-signed certificate for development
// and for production deployments that terminate TLS upstream.
func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"arrayshim"},
			CommonName:   "arrayshim",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	privDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})
	return tls.X509KeyPair(certPEM, keyPEM)
}
