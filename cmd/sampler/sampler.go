// Package main implements one sampling run.
//
// This file contains the Sampler type which drives a run:
//
//	describe solver → collect rounds → publish snapshots → final snapshot
//
// Progress snapshots are written to the store after every successful round so
// the status server (or another process reading the same redis) can follow the
// run. The last snapshot carries the reduced result and Done set.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lanl-ansi/dwisc/cmd/sampler/metrics"
	"github.com/lanl-ansi/dwisc/pkg/export"
	"github.com/lanl-ansi/dwisc/pkg/problem"
	"github.com/lanl-ansi/dwisc/pkg/samples"
	"github.com/lanl-ansi/dwisc/pkg/scheduler"
	"github.com/lanl-ansi/dwisc/pkg/solver"
	"github.com/lanl-ansi/dwisc/pkg/storage"
)

// Sampler runs one collection and publishes its progress.
type Sampler struct {
	runID   string
	source  string
	doc     *problem.Document
	solver  solver.Solver
	store   storage.Store
	cfg     scheduler.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	runErr error
}

// NewSampler creates a Sampler. source names the problem input in snapshots.
func NewSampler(
	runID, source string,
	doc *problem.Document,
	s solver.Solver,
	store storage.Store,
	cfg scheduler.Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		runID:   runID,
		source:  source,
		doc:     doc,
		solver:  s,
		store:   store,
		cfg:     cfg,
		logger:  logger.With("run", runID),
		metrics: m,
	}
}

// Health reports the error that ended the run, if any.
func (s *Sampler) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Run collects the configured number of reads.
func (s *Sampler) Run(ctx context.Context) (*samples.SolutionSet, error) {
	set, err := s.run(ctx)
	if err != nil {
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
		s.recordError(err)
	}
	return set, err
}

func (s *Sampler) run(ctx context.Context) (*samples.SolutionSet, error) {
	cfg := s.cfg
	cfg.OnMetadata = s.checkChip
	cfg.OnRound = func(p scheduler.Progress, agg *samples.SolutionSet) {
		s.publish(ctx, p.CollectedReads, p.Round+1, p.Retries, false, agg)
	}

	sched, err := scheduler.New(s.solver, s.doc.Ising(), cfg, s.logger, s.metricsOrNil())
	if err != nil {
		return nil, err
	}

	set, err := sched.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	// The run context may already be cancelled by a signal arriving after the
	// last round; the final snapshot is still worth writing.
	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.publish(putCtx, set.TotalOccurrences(), 0, 0, true, set)

	return set, nil
}

func (s *Sampler) checkChip(md *samples.Metadata) {
	want := s.doc.Metadata.ChipID
	if want == "" || md == nil || md.ChipID == nil {
		return
	}
	if *md.ChipID != want {
		s.logger.Warn("problem targets a different chip",
			"problem_chip_id", want,
			"solver_chip_id", *md.ChipID,
		)
	}
}

func (s *Sampler) publish(ctx context.Context, collected, round, retries int, done bool, set *samples.SolutionSet) {
	if s.store == nil {
		return
	}
	snapshot := storage.Snapshot{
		RunID:          s.runID,
		Problem:        s.source,
		GeneratedAt:    time.Now(),
		TotalReads:     s.cfg.TotalReads,
		CollectedReads: collected,
		Rounds:         round,
		Retries:        retries,
		Done:           done,
		Result:         export.FromSet(set),
	}
	if done {
		if prev, found, err := s.store.GetLatest(ctx, s.runID); err == nil && found {
			snapshot.Rounds = prev.Rounds
			snapshot.Retries = prev.Retries
		}
	}
	if err := s.store.Put(ctx, snapshot); err != nil {
		s.logger.Warn("failed to store snapshot", "error", err)
		if s.metrics != nil {
			s.metrics.RecordError("store", "put_failed")
		}
	}
}

func (s *Sampler) recordError(err error) {
	if s.metrics == nil {
		return
	}
	reason := "transient"
	switch {
	case errors.Is(err, context.Canceled):
		reason = "cancelled"
	case errors.Is(err, scheduler.ErrRetriesExhausted):
		reason = "retries_exhausted"
	case errors.Is(err, scheduler.ErrInconsistent):
		reason = "inconsistent"
	case errors.Is(err, scheduler.ErrInvalidConfig):
		reason = "invalid_config"
	case solver.IsFatal(err):
		reason = "fatal"
	}
	s.metrics.RecordError("scheduler", reason)
}

// metricsOrNil keeps a nil *metrics.Metrics from becoming a non-nil interface.
func (s *Sampler) metricsOrNil() scheduler.Metrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics
}
