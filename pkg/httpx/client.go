package httpx

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	dwtls "github.com/lanl-ansi/dwisc/pkg/tls"
)

// NewClient creates the HTTP client used to talk to a solver API. When
// tlsCfg.Enabled is set the client authenticates with mutual TLS.
//
// The solver API is polled from one goroutine per outstanding call, so the
// idle pool is sized for a handful of concurrent connections to one host.
func NewClient(tlsCfg dwtls.Config, timeout time.Duration) (*http.Client, error) {
	var clientTLS *tls.Config
	if tlsCfg.Enabled {
		var err error
		clientTLS, err = dwtls.NewClientTLSConfig(tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("client tls: %w", err)
		}
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     clientTLS,
		},
	}, nil
}
