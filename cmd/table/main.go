// Command table converts solution documents to CSV for analysis tools.
//
// Modes:
//   - default: one row per record, num_occurrences then the spins, to stdout
//   - -raw: one row per sample, batch then the spins, to stdout
//   - -split-prefix: the input holds a JSON array of documents; each one is
//     written to <prefix>_00000.csv, <prefix>_00001.csv, ... with a count column
//
// Usage:
//
//	table ran1_samples.json > ran1_samples.csv
//	table -split-prefix=ran1 ran1_series.json
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lanl-ansi/dwisc/pkg/export"
	"github.com/lanl-ansi/dwisc/pkg/logger"
)

type config struct {
	SampleData  string
	Raw         bool
	SplitPrefix string
	LogFormat   string
	LogLevel    string
}

func parseConfig(args []string, out io.Writer) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("table", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintln(out, "Usage: table [flags] sample_data")
		fs.PrintDefaults()
	}

	fs.BoolVar(&cfg.Raw, "raw", false, "Write sample streams (batch column) rather than histograms")
	fs.StringVar(&cfg.SplitPrefix, "split-prefix", "", "Treat the input as a list of documents and write one <prefix>_NNNNN.csv per document")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, errors.New("exactly one sample_data file is required")
	}
	cfg.SampleData = fs.Arg(0)
	if cfg.Raw && cfg.SplitPrefix != "" {
		return nil, errors.New("-raw and -split-prefix cannot be combined")
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

	if err := run(cfg, os.Stdout, logger); err != nil {
		logger.Error("table failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("loading", "file", cfg.SampleData)
	f, err := os.Open(cfg.SampleData)
	if err != nil {
		return fmt.Errorf("open sample data: %w", err)
	}
	defer f.Close()

	if cfg.SplitPrefix != "" {
		return splitTables(f, cfg.SplitPrefix, logger)
	}

	set, err := export.Decode(f)
	if err != nil {
		return err
	}

	if !cfg.Raw {
		return export.WriteHistogram(stdout, set)
	}

	grouped, err := export.WriteRaw(stdout, set)
	if err != nil {
		return err
	}
	if grouped > 0 {
		logger.Warn("printing raw data but found records with num_occurrences > 1", "records", grouped)
	}
	return nil
}

func splitTables(r io.Reader, prefix string, logger *slog.Logger) error {
	sets, err := export.DecodeMany(r)
	if err != nil {
		return err
	}

	for i, set := range sets {
		path := fmt.Sprintf("%s_%05d.csv", prefix, i)
		logger.Info("writing", "file", path)

		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := export.WriteCounts(out, set); err != nil {
			out.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	return nil
}
