// Command sampler collects a fixed number of samples of an Ising problem from
// a solver and writes them as one solution document.
//
// The sampler:
//  1. Loads the problem (bqpjson, spin domain) from -input-file or stdin
//  2. Builds the solver named by -profile from the profile file
//  3. Collects -num-reads samples in rounds of -calls-per-round concurrent
//     calls of -solve-num-reads each, resubmitting rounds that fail
//  4. Logs a summary of the best solutions
//  5. Writes the solution document to -output-file or stdout
//
// When -listen is set, a status server runs alongside the collection:
//   - GET /runs/current?run=<id> - Latest progress snapshot of the run
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	sampler -input-file=ran1.json -num-reads=25000 -profile=lab > ran1_samples.json
//
// Environment variables use the DWISC_ prefix, e.g. DWISC_NUM_READS,
// DWISC_PROFILE, DWISC_STORAGE, DWISC_LOG_LEVEL. See -help for the full list.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lanl-ansi/dwisc/cmd/sampler/config"
	"github.com/lanl-ansi/dwisc/cmd/sampler/metrics"
	"github.com/lanl-ansi/dwisc/cmd/sampler/router"
	"github.com/lanl-ansi/dwisc/pkg/export"
	"github.com/lanl-ansi/dwisc/pkg/httpx"
	"github.com/lanl-ansi/dwisc/pkg/logger"
	"github.com/lanl-ansi/dwisc/pkg/problem"
	"github.com/lanl-ansi/dwisc/pkg/scheduler"
	"github.com/lanl-ansi/dwisc/pkg/solver"
	"github.com/lanl-ansi/dwisc/pkg/storage"
	"github.com/lanl-ansi/dwisc/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sampler failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	doc, source, err := loadProblem(cfg.InputFile)
	if err != nil {
		return err
	}

	profiles, err := solver.LoadProfiles(cfg.ProfileFile)
	if err != nil {
		return err
	}
	profile, err := profiles.Get(cfg.Profile)
	if err != nil {
		return err
	}
	s, err := solver.New(profile)
	if err != nil {
		return err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = storage.NewRunID()
	}
	if err := storage.ValidateRunID(runID); err != nil {
		return err
	}

	logger.Info("starting dwisc sampler",
		"version", version,
		"run", runID,
		"problem", source,
		"variables", len(doc.VariableIDs),
		"solver", s.Name(),
	)

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New(s.Name(), nil)

	schedCfg := scheduler.Config{
		TotalReads:    cfg.NumReads,
		ReadsPerCall:  cfg.SolveNumReads,
		CallsPerRound: cfg.CallsPerRound,
		Timeout:       cfg.Timeout,
		Raw:           cfg.Raw,
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		Params: solver.Params{
			AnnealingTime:             cfg.AnnealingTime,
			AutoScale:                 cfg.AutoScale,
			FluxDriftCompensation:     cfg.FluxDriftCompensation,
			NumSpinReversalTransforms: cfg.SpinReversalTransforms(),
		},
	}

	sampler := NewSampler(runID, source, doc, s, store, schedCfg, logger, m)

	if cfg.Listen != "" {
		srv, err := startStatusServer(cfg, store, sampler.Health, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(10 * time.Second); err != nil {
				logger.Error("server shutdown failed", "error", err)
			}
		}()
	}

	set, err := sampler.Run(ctx)
	if err != nil {
		return err
	}

	export.Report(logger, set, cfg.ReportTop)

	return writeResult(cfg, func(w io.Writer) error {
		return export.Encode(w, set, cfg.PrettyPrint)
	})
}

func loadProblem(path string) (*problem.Document, string, error) {
	if path == "" {
		doc, err := problem.Load(os.Stdin)
		return doc, "stdin", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open problem: %w", err)
	}
	defer f.Close()
	doc, err := problem.Load(f)
	return doc, path, err
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.Storage {
	case "redis":
		rs, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, func() {
			if err := rs.Close(); err != nil {
				slog.Error("failed to close store", "error", err)
			}
		}, nil
	default:
		ms := storage.NewMemoryStoreWithTTL(cfg.SnapshotTTL, 0)
		return ms, ms.Stop, nil
	}
}

func startStatusServer(cfg *config.Config, store storage.Store, health func() error, logger *slog.Logger) (*httpx.Server, error) {
	srv := httpx.NewServer(cfg.Listen, router.SetupRoutes(store, health, logger), logger)

	var listen func() error
	if cfg.TLS.Enabled {
		tlsCfg, err := tls.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("status server tls: %w", err)
		}
		srv.SetTLSConfig(tlsCfg)
		listen = func() error { return srv.ListenTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile) }
	} else {
		listen = srv.Listen
	}

	go func() {
		if err := listen(); err != nil {
			logger.Error("status server failed", "error", err)
		}
	}()
	return srv, nil
}

func writeResult(cfg *config.Config, write func(io.Writer) error) error {
	if cfg.OutputFile == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
