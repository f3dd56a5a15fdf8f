package solver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile holds the connection details of one solver.
//
// Example profile file:
//
//	default: local
//	profiles:
//	  local:
//	    kind: simulated
//	    seed: 7
//	    sweeps: 200
//	  lab:
//	    kind: http
//	    url: https://sapi.example.com/v2
//	    token: "..."
//	    solver: DW_2000Q_2
//	    poll_interval: 1s
//	    submit_rate: 4
type Profile struct {
	Kind string `yaml:"kind"`

	URL            string        `yaml:"url,omitempty"`
	Token          string        `yaml:"token,omitempty"`
	Solver         string        `yaml:"solver,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval,omitempty"`
	SubmitRate     float64       `yaml:"submit_rate,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	TLS            TLSProfile    `yaml:"tls,omitempty"`

	Seed   uint64 `yaml:"seed,omitempty"`
	Sweeps int    `yaml:"sweeps,omitempty"`
}

// TLSProfile enables mutual TLS towards the solver API when CertFile is set.
type TLSProfile struct {
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	CAFile   string `yaml:"ca_file,omitempty"`
}

// Profiles is the decoded profile file.
type Profiles struct {
	Default  string             `yaml:"default"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads a profile file from path.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	return ParseProfiles(bytes.NewReader(data))
}

// ParseProfiles decodes a profile file. Unknown keys are rejected.
func ParseProfiles(r io.Reader) (*Profiles, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profiles
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("profile file is empty")
		}
		return nil, fmt.Errorf("parse profile file: %w", err)
	}
	if len(p.Profiles) == 0 {
		return nil, errors.New("profile file defines no profiles")
	}
	if p.Default != "" {
		if _, ok := p.Profiles[p.Default]; !ok {
			return nil, fmt.Errorf("default profile %q is not defined", p.Default)
		}
	}
	return &p, nil
}

// Get returns the named profile. An empty name selects the default profile, or
// the only profile when exactly one is defined.
func (p *Profiles) Get(name string) (Profile, error) {
	if name == "" {
		name = p.Default
	}
	if name == "" {
		if len(p.Profiles) == 1 {
			for _, prof := range p.Profiles {
				return prof, nil
			}
		}
		return Profile{}, fmt.Errorf("no profile selected and no default among %v", p.Names())
	}
	prof, ok := p.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (have %v)", name, p.Names())
	}
	return prof, nil
}

// Names lists the defined profiles in sorted order.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.Profiles))
	for name := range p.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
