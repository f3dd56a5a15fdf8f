// Package solver defines the capability contract the batch scheduler consumes
// from a remote sampling service, and provides two implementations:
//   - HTTPSolver: submits problems to a REST sampling API and polls for answers
//   - SimulatedSolver: in-process annealing sampler for offline runs and tests
//
// A Solver is a stateless capability: Submit may be called concurrently and
// returns immediately with a PendingCall. Await blocks until the answer is
// available or its context ends. Abandoning a PendingCall (not awaiting it) is
// allowed; the remote job may keep running.
//
// Errors are classified by IsFatal. Fatal conditions (exhausted access time,
// rejected problems) end a collection run; everything else is treated as
// transient and retried by the scheduler.
package solver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lanl-ansi/dwisc/pkg/problem"
	"github.com/lanl-ansi/dwisc/pkg/samples"
)

// Answer modes understood by solvers.
const (
	AnswerHistogram = "histogram"
	AnswerRaw       = "raw"
)

var (
	// ErrInsufficientTime is returned when the service refuses work because
	// the account has no remaining access time.
	ErrInsufficientTime = errors.New("insufficient remaining solver access time")

	// ErrProblemRejected is returned when the service refuses the problem or
	// its parameters. Resubmitting the same call cannot succeed.
	ErrProblemRejected = errors.New("problem rejected by solver")

	// ErrCallTimeout is returned when an answer does not arrive in time.
	ErrCallTimeout = errors.New("timed out waiting for solver answer")

	// ErrCallFailed is returned when the service reports a failed job.
	ErrCallFailed = errors.New("solver call failed")
)

// Solver submits sampling problems.
type Solver interface {
	// Name identifies the solver, e.g. the remote solver name or "simulated".
	Name() string

	// Submit starts one sampling call and returns without waiting for its answer.
	Submit(ctx context.Context, p *problem.Ising, params Params) (PendingCall, error)
}

// Describer is implemented by solvers that can report the identification
// recorded with each batch (URL, solver name, chip id).
type Describer interface {
	Describe(ctx context.Context) (*samples.Metadata, error)
}

// PendingCall is a submitted call whose answer has not been collected yet.
type PendingCall interface {
	Await(ctx context.Context) (*samples.RawAnswer, error)
}

// Params are the per-call sampling parameters.
type Params struct {
	NumReads                  int
	AnnealingTime             int
	AutoScale                 bool
	FluxDriftCompensation     bool
	NumSpinReversalTransforms int
	AnswerMode                string
}

// SolveArgs records p the way merged result sets track call parameters.
func (p Params) SolveArgs() *samples.SolveArgs {
	args := &samples.SolveArgs{
		AutoScale:             &p.AutoScale,
		AnnealingTime:         &p.AnnealingTime,
		NumReads:              &p.NumReads,
		FluxDriftCompensation: &p.FluxDriftCompensation,
	}
	if p.NumSpinReversalTransforms > 0 {
		args.NumSpinReversalTransforms = &p.NumSpinReversalTransforms
	}
	if p.AnswerMode != "" {
		args.AnswerMode = &p.AnswerMode
	}
	return args
}

// Validate checks parameters before submission.
func (p Params) Validate() error {
	if p.NumReads <= 0 {
		return fmt.Errorf("%w: num_reads must be > 0, got %d", ErrProblemRejected, p.NumReads)
	}
	if p.AnnealingTime < 0 {
		return fmt.Errorf("%w: annealing_time must be >= 0, got %d", ErrProblemRejected, p.AnnealingTime)
	}
	switch p.AnswerMode {
	case "", AnswerHistogram, AnswerRaw:
	default:
		return fmt.Errorf("%w: unknown answer mode %q", ErrProblemRejected, p.AnswerMode)
	}
	return nil
}

// FatalError marks an error as non-retryable regardless of its cause.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// StatusError reports an unexpected HTTP status from a solver service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("solver http status %d: %s", e.Code, e.Message)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests ||
		e.Code == http.StatusRequestTimeout ||
		e.Code >= 500
}

// IsFatal is the default error classifier: it reports whether err must abort a
// collection run instead of triggering a retry.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, ErrInsufficientTime) || errors.Is(err, ErrProblemRejected) {
		return true
	}
	if errors.Is(err, samples.ErrMissingVariable) || errors.Is(err, samples.ErrMalformedAnswer) {
		return true
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}
