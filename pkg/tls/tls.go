// Package tls builds TLS 1.3 configurations for the two network edges of the
// sampler: the client connection to a remote solver API and the optional
// status server.
//
// Both sides use mutual authentication: the solver client presents a
// certificate and verifies the API against a private CA, and the status server
// requires client certificates signed by the same kind of CA.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds PEM file paths for one TLS edge.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate reports missing or unreadable files when TLS is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return errors.New("tls enabled but cert/key/ca files not specified")
	}
	for _, path := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}
	return nil
}

// NewServerTLSConfig creates a server configuration that requires client
// certificates signed by the CA in c.CAFile. The server certificate itself is
// passed to ListenAndServeTLS.
func NewServerTLSConfig(c Config) (*tls.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	pool, err := loadCAPool(c.CAFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		ClientCAs:  pool,
		ClientAuth: tls.RequireAndVerifyClientCert,
		MinVersion: tls.VersionTLS13,
	}, nil
}

// NewClientTLSConfig creates a client configuration presenting the certificate
// in c and trusting only the CA in c.CAFile.
func NewClientTLSConfig(c Config) (*tls.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	pool, err := loadCAPool(c.CAFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}
