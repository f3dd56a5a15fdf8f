package solver

import (
	"fmt"
	"time"

	"github.com/lanl-ansi/dwisc/pkg/httpx"
	"github.com/lanl-ansi/dwisc/pkg/tls"
)

// New creates a solver from a profile.
//
// Supported kinds:
//   - "simulated": SimulatedSolver (seed, sweeps)
//   - "http": HTTPSolver (url, solver, token, poll_interval, submit_rate, tls)
func New(p Profile) (Solver, error) {
	switch p.Kind {
	case "simulated":
		return NewSimulatedSolver(p.Seed, p.Sweeps), nil
	case "http":
		return newHTTP(p)
	default:
		return nil, fmt.Errorf("unknown solver kind: %q (must be simulated or http)", p.Kind)
	}
}

func newHTTP(p Profile) (Solver, error) {
	timeout := p.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tlsCfg := tls.Config{
		Enabled:  p.TLS.CertFile != "",
		CertFile: p.TLS.CertFile,
		KeyFile:  p.TLS.KeyFile,
		CAFile:   p.TLS.CAFile,
	}
	if err := tlsCfg.Validate(); err != nil {
		return nil, fmt.Errorf("http solver: %w", err)
	}

	client, err := httpx.NewClient(tlsCfg, timeout)
	if err != nil {
		return nil, fmt.Errorf("http solver: %w", err)
	}

	return NewHTTPSolver(HTTPConfig{
		URL:          p.URL,
		Token:        p.Token,
		Solver:       p.Solver,
		PollInterval: p.PollInterval,
		SubmitRate:   p.SubmitRate,
		HTTPClient:   client,
	})
}
