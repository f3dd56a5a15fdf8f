// Package scheduler collects a fixed number of samples from a solver in rounds
// of concurrent calls.
//
// A run proceeds as:
//
//	plan round → submit all calls → await each (bounded) → fold into aggregate
//
// Every call of a round is submitted before the first one is awaited. A round
// either succeeds as a whole or is thrown away: when any call fails with an
// error the classifier considers transient, the answers already received in
// that round are discarded and a fresh round with the same plan is submitted.
// Errors the classifier considers fatal end the run immediately.
//
// After the last round the aggregate is reduced to a histogram (unless raw
// collection was requested) and checked to hold exactly the requested number
// of reads.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lanl-ansi/dwisc/pkg/problem"
	"github.com/lanl-ansi/dwisc/pkg/samples"
	"github.com/lanl-ansi/dwisc/pkg/solver"
)

var (
	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("invalid scheduler config")

	// ErrRetriesExhausted is returned when MaxRetries consecutive rounds fail.
	ErrRetriesExhausted = errors.New("round retries exhausted")

	// ErrInconsistent means the collected occurrence total does not match the
	// requested read count. It indicates an accounting bug, never bad luck.
	ErrInconsistent = errors.New("collected reads do not match requested reads")
)

// Round outcomes passed to Metrics.RecordRound.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFatal   = "fatal"
)

// Metrics receives scheduler instrumentation. Implementations must be safe to
// call from the collection goroutine only; no concurrent calls are made.
type Metrics interface {
	RecordRound(outcome string)
	RecordCall(wait time.Duration)
	RecordReads(n int)
	SetRetries(n int)
}

// Progress describes a run after a successful round.
type Progress struct {
	Round          int
	Calls          int
	TotalReads     int
	CollectedReads int
	RemainingReads int

	// Retries counts every discarded round of the run so far.
	Retries int
}

// Config controls a collection run.
type Config struct {
	TotalReads    int
	ReadsPerCall  int
	CallsPerRound int

	// Timeout bounds the wait for each call's answer.
	Timeout time.Duration

	// IsFatal classifies call errors. Defaults to solver.IsFatal.
	IsFatal func(error) bool

	// Raw keeps one record per sample, tagged with the call that produced it,
	// instead of reducing to a histogram.
	Raw bool

	// MaxRetries caps consecutive failed rounds. Zero retries forever.
	MaxRetries int

	// RetryDelay is slept before resubmitting a failed round.
	RetryDelay time.Duration

	// Params are the per-call sampling parameters. NumReads and AnswerMode are
	// set by the scheduler.
	Params solver.Params

	// Metadata is recorded with every batch. When nil and the solver
	// implements solver.Describer, it is fetched once at the start of Collect.
	Metadata *samples.Metadata

	// OnMetadata, if set, is called once per Collect with the metadata the
	// batches will carry, which may be nil.
	OnMetadata func(*samples.Metadata)

	// OnRound, if set, receives a copy of the aggregate after each successful
	// round.
	OnRound func(Progress, *samples.SolutionSet)
}

// Validate checks that the counts and timeout are usable.
func (c Config) Validate() error {
	if c.TotalReads <= 0 {
		return fmt.Errorf("%w: total reads must be > 0, got %d", ErrInvalidConfig, c.TotalReads)
	}
	if c.ReadsPerCall <= 0 {
		return fmt.Errorf("%w: reads per call must be > 0, got %d", ErrInvalidConfig, c.ReadsPerCall)
	}
	if c.CallsPerRound <= 0 {
		return fmt.Errorf("%w: calls per round must be > 0, got %d", ErrInvalidConfig, c.CallsPerRound)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0, got %s", ErrInvalidConfig, c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must be >= 0, got %s", ErrInvalidConfig, c.RetryDelay)
	}
	return nil
}

// Scheduler runs one collection against a solver. It is not safe for
// concurrent use; create one per run.
type Scheduler struct {
	solver  solver.Solver
	problem *problem.Ising
	cfg     Config
	logger  *slog.Logger
	metrics Metrics

	metadata *samples.Metadata
	batch    int
}

// New creates a Scheduler. logger and metrics may be nil.
func New(s solver.Solver, p *problem.Ising, cfg Config, logger *slog.Logger, metrics Metrics) (*Scheduler, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil solver", ErrInvalidConfig)
	}
	if p == nil || len(p.VariableIDs) == 0 {
		return nil, fmt.Errorf("%w: problem has no variables", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IsFatal == nil {
		cfg.IsFatal = solver.IsFatal
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		solver:  s,
		problem: p,
		cfg:     cfg,
		logger:  logger.With("solver", s.Name()),
		metrics: metrics,
	}, nil
}

// Collect runs rounds until TotalReads samples have been gathered and returns
// the aggregate. In histogram mode the result is reduced and sorted.
func (s *Scheduler) Collect(ctx context.Context) (*samples.SolutionSet, error) {
	s.metadata = s.cfg.Metadata
	if s.metadata == nil {
		s.metadata = s.describe(ctx)
	}
	if s.cfg.OnMetadata != nil {
		s.cfg.OnMetadata(s.metadata)
	}
	s.batch = 0

	var (
		agg          *samples.SolutionSet
		remaining    = s.cfg.TotalReads
		round        int
		calls        int
		retries      int
		totalRetries int
	)

	s.logger.Info("starting collection",
		"total_reads", s.cfg.TotalReads,
		"reads_per_call", s.cfg.ReadsPerCall,
		"calls_per_round", s.cfg.CallsPerRound,
		"raw", s.cfg.Raw,
	)

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("collection aborted: %w", err)
		}

		sizes := PlanRound(remaining, s.cfg.ReadsPerCall, s.cfg.CallsPerRound)
		s.logger.Info("submitting round",
			"round", round,
			"calls", len(sizes),
			"reads", sum(sizes),
			"remaining", remaining,
		)

		sets, err := s.runRound(ctx, sizes)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("collection aborted: %w", ctxErr)
			}
			if s.cfg.IsFatal(err) {
				s.recordRound(OutcomeFatal)
				s.logger.Error("round failed with fatal error", "round", round, "error", err)
				return nil, &solver.FatalError{Err: fmt.Errorf("round %d: %w", round, err)}
			}

			retries++
			totalRetries++
			s.recordRound(OutcomeRetry)
			if s.metrics != nil {
				s.metrics.SetRetries(retries)
			}
			if s.cfg.MaxRetries > 0 && retries > s.cfg.MaxRetries {
				return nil, fmt.Errorf("%w: %d consecutive failures, last: %w", ErrRetriesExhausted, retries, err)
			}

			s.logger.Warn("round failed, resubmitting",
				"round", round,
				"retries", retries,
				"error", err,
			)
			if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
				return nil, fmt.Errorf("collection aborted: %w", err)
			}
			continue
		}

		if retries > 0 && s.metrics != nil {
			s.metrics.SetRetries(0)
		}
		retries = 0

		for _, set := range sets {
			if s.cfg.Raw {
				s.tagBatch(set)
			}
			if agg == nil {
				agg = set
				continue
			}
			if err := samples.Merge(agg, set); err != nil {
				return nil, fmt.Errorf("merge round %d: %w", round, err)
			}
		}

		submitted := sum(sizes)
		remaining -= submitted
		calls += len(sizes)
		s.recordRound(OutcomeSuccess)
		if s.metrics != nil {
			s.metrics.RecordReads(submitted)
		}

		progress := Progress{
			Round:          round,
			Calls:          calls,
			TotalReads:     s.cfg.TotalReads,
			CollectedReads: s.cfg.TotalReads - remaining,
			RemainingReads: remaining,
			Retries:        totalRetries,
		}
		s.logger.Info("round complete",
			"round", round,
			"collected", progress.CollectedReads,
			"remaining", remaining,
		)
		if s.cfg.OnRound != nil {
			s.cfg.OnRound(progress, agg.Clone())
		}
		round++
	}

	if !s.cfg.Raw {
		if err := samples.Reduce(agg); err != nil {
			return nil, fmt.Errorf("reduce: %w", err)
		}
	}

	if got := agg.TotalOccurrences(); got != s.cfg.TotalReads {
		return nil, fmt.Errorf("%w: collected %d, requested %d", ErrInconsistent, got, s.cfg.TotalReads)
	}

	s.logger.Info("collection complete",
		"rounds", round,
		"calls", calls,
		"records", len(agg.Solutions),
		"retries", totalRetries,
	)
	return agg, nil
}

// runRound submits one call per entry of sizes, then awaits them in order.
// The returned sets are in call order.
func (s *Scheduler) runRound(ctx context.Context, sizes []int) ([]*samples.SolutionSet, error) {
	type submitted struct {
		call   solver.PendingCall
		params solver.Params
		start  time.Time
	}

	mode := solver.AnswerHistogram
	if s.cfg.Raw {
		mode = solver.AnswerRaw
	}

	pending := make([]submitted, 0, len(sizes))
	for i, n := range sizes {
		params := s.cfg.Params
		params.NumReads = n
		params.AnswerMode = mode

		start := time.Now()
		call, err := s.solver.Submit(ctx, s.problem, params)
		if err != nil {
			return nil, fmt.Errorf("submit call %d: %w", i, err)
		}
		pending = append(pending, submitted{call: call, params: params, start: start})
	}

	sets := make([]*samples.SolutionSet, 0, len(pending))
	for i, p := range pending {
		ans, err := s.await(ctx, p.call)
		if err != nil {
			return nil, fmt.Errorf("await call %d: %w", i, err)
		}
		set, err := samples.FromAnswer(ans, s.problem.VariableIDs, p.start, time.Now(), p.params.SolveArgs(), s.metadata)
		if err != nil {
			return nil, fmt.Errorf("call %d answer: %w", i, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (s *Scheduler) await(ctx context.Context, call solver.PendingCall) (*samples.RawAnswer, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	ans, err := call.Await(callCtx)
	if s.metrics != nil {
		s.metrics.RecordCall(time.Since(start))
	}
	if err != nil {
		// The remote job may still be running; only the wait is abandoned.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", solver.ErrCallTimeout, s.cfg.Timeout)
		}
		return nil, err
	}
	return ans, nil
}

func (s *Scheduler) describe(ctx context.Context) *samples.Metadata {
	d, ok := s.solver.(solver.Describer)
	if !ok {
		return nil
	}
	md, err := d.Describe(ctx)
	if err != nil {
		s.logger.Warn("could not describe solver, batches will carry no metadata", "error", err)
		return nil
	}
	return md
}

func (s *Scheduler) tagBatch(set *samples.SolutionSet) {
	for i := range set.Solutions {
		id := s.batch
		set.Solutions[i].Batch = &id
	}
	s.batch++
}

func (s *Scheduler) recordRound(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordRound(outcome)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
