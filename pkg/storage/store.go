// Package storage keeps the latest progress snapshot of each collection run
// so a status endpoint (or another process) can read it while the run is in
// flight.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lanl-ansi/dwisc/pkg/export"
)

// ErrInvalidRunID is returned for run ids that cannot be used as store keys.
var ErrInvalidRunID = errors.New("invalid run id")

// Snapshot is the state of one collection run after a round.
type Snapshot struct {
	RunID       string    `json:"run_id"`
	Problem     string    `json:"problem,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalReads     int `json:"total_reads"`
	CollectedReads int `json:"collected_reads"`
	Rounds         int `json:"rounds"`
	Retries        int `json:"retries"`

	// Done is set on the final snapshot of a run.
	Done bool `json:"done"`

	// Result is the aggregate so far. Intermediate snapshots are not reduced.
	Result *export.Document `json:"result,omitempty"`
}

// Store keeps the latest snapshot per run.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, runID string) (Snapshot, bool, error)
}

// NewRunID returns a fresh random run id.
func NewRunID() string {
	return uuid.NewString()
}

// ValidateRunID accepts ids made of ASCII letters, digits, hyphens and
// underscores, which covers generated UUIDs and hand-picked names.
func ValidateRunID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRunID)
	}
	if len(id) > 128 {
		return fmt.Errorf("%w: longer than 128 characters", ErrInvalidRunID)
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidRunID, id, c)
		}
	}
	return nil
}
