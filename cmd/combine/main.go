// Command combine merges the solution documents of several sampler runs into
// one, e.g. the shards of a long collection run on different days.
//
// Every *.json file under -sample-directory is loaded; files that cannot be
// parsed as solution documents are logged and skipped. The merged document is
// reduced to a histogram unless -combine-only is given, then written to
// -output-file or stdout.
//
// Usage:
//
//	combine -sample-directory=runs/ran1 > ran1_combined.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lanl-ansi/dwisc/pkg/export"
	"github.com/lanl-ansi/dwisc/pkg/logger"
)

type config struct {
	SampleDirectory string
	CombineOnly     bool
	OutputFile      string
	PrettyPrint     bool
	Workers         int
	ReportTop       int
	LogFormat       string
	LogLevel        string
}

func parseConfig(args []string, out io.Writer) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("combine", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.SampleDirectory, "sample-directory", getEnv("DWISC_SAMPLE_DIRECTORY", ""), "Directory of solution files (.json) to combine [DWISC_SAMPLE_DIRECTORY]")
	fs.BoolVar(&cfg.CombineOnly, "combine-only", false, "Skip merging solution counts, for raw data collection")
	fs.StringVar(&cfg.OutputFile, "output-file", getEnv("DWISC_OUTPUT_FILE", ""), "Where to write the combined document; stdout when empty [DWISC_OUTPUT_FILE]")
	fs.BoolVar(&cfg.PrettyPrint, "pretty-print", false, "Indent the combined document")
	fs.IntVar(&cfg.Workers, "workers", getEnvInt("DWISC_WORKERS", 4), "Files decoded concurrently [DWISC_WORKERS]")
	fs.IntVar(&cfg.ReportTop, "report-top", getEnvInt("DWISC_REPORT_TOP", 50), "Number of solutions listed in the log report [DWISC_REPORT_TOP]")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("DWISC_LOG_FORMAT", "text"), "Log format: text or json [DWISC_LOG_FORMAT]")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("DWISC_LOG_LEVEL", "info"), "Log level: debug, info, warn, error [DWISC_LOG_LEVEL]")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.SampleDirectory == "" {
		return nil, errors.New("sample-directory is required")
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0, got %d", cfg.Workers)
	}
	if cfg.ReportTop < 0 {
		return nil, fmt.Errorf("report-top must be >= 0, got %d", cfg.ReportTop)
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(2)
	}

	logger := logger.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Error("combine failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config, stdout io.Writer, logger *slog.Logger) error {
	set, err := Combine(ctx, cfg.SampleDirectory, cfg.Workers, cfg.CombineOnly, logger)
	if errors.Is(err, ErrNoResults) {
		logger.Info("no results found", "directory", cfg.SampleDirectory)
		return nil
	}
	if err != nil {
		return err
	}

	export.Report(logger, set, cfg.ReportTop)

	if cfg.OutputFile == "" {
		return export.Encode(stdout, set, cfg.PrettyPrint)
	}
	f, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.Encode(f, set, cfg.PrettyPrint); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
