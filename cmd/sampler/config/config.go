// Package config parses the sampler's command line.
//
// Every flag has an environment fallback (shown in brackets in -help); flags
// win over the environment, which wins over the defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lanl-ansi/dwisc/pkg/tls"
)

// Config holds all sampler configuration.
type Config struct {
	InputFile   string
	OutputFile  string
	PrettyPrint bool

	Profile     string
	ProfileFile string

	NumReads                  int
	SolveNumReads             int
	CallsPerRound             int
	Timeout                   time.Duration
	MaxRetries                int
	RetryDelay                time.Duration
	AnnealingTime             int
	AutoScale                 bool
	FluxDriftCompensation     bool
	SpinReversalTransformRate int
	Raw                       bool
	ReportTop                 int

	RunID         string
	Listen        string
	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	SnapshotTTL   time.Duration
	TLS           tls.Config

	LogFormat string
	LogLevel  string
}

// ParseFlags parses os.Args and exits with status 2 on invalid input.
func ParseFlags() *Config {
	cfg, err := Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(2)
	}
	return cfg
}

// Parse parses args into a validated Config. Usage output goes to out.
func Parse(args []string, out io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("sampler", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.InputFile, "input-file", getEnv("DWISC_INPUT_FILE", ""), "Problem file in bqpjson format; stdin when empty [DWISC_INPUT_FILE]")
	fs.StringVar(&cfg.OutputFile, "output-file", getEnv("DWISC_OUTPUT_FILE", ""), "Where to write the solution document; stdout when empty [DWISC_OUTPUT_FILE]")
	fs.BoolVar(&cfg.PrettyPrint, "pretty-print", getEnvBool("DWISC_PRETTY_PRINT", false), "Indent the solution document [DWISC_PRETTY_PRINT]")

	fs.StringVar(&cfg.Profile, "profile", getEnv("DWISC_PROFILE", ""), "Solver profile name; the file's default when empty [DWISC_PROFILE]")
	fs.StringVar(&cfg.ProfileFile, "profile-file", getEnv("DWISC_PROFILE_FILE", defaultProfileFile()), "Solver profile file [DWISC_PROFILE_FILE]")

	fs.IntVar(&cfg.NumReads, "num-reads", getEnvInt("DWISC_NUM_READS", 25000), "Total number of reads to collect [DWISC_NUM_READS]")
	fs.IntVar(&cfg.SolveNumReads, "solve-num-reads", getEnvInt("DWISC_SOLVE_NUM_READS", 10000), "Reads requested by each solver call [DWISC_SOLVE_NUM_READS]")
	fs.IntVar(&cfg.CallsPerRound, "calls-per-round", getEnvInt("DWISC_CALLS_PER_ROUND", 3), "Concurrent solver calls per round [DWISC_CALLS_PER_ROUND]")
	fs.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("DWISC_TIMEOUT", 10*time.Minute), "Wait limit for each call's answer [DWISC_TIMEOUT]")
	fs.IntVar(&cfg.MaxRetries, "max-retries", getEnvInt("DWISC_MAX_RETRIES", 0), "Consecutive failed rounds before giving up; 0 retries forever [DWISC_MAX_RETRIES]")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", getEnvDuration("DWISC_RETRY_DELAY", 5*time.Second), "Pause before resubmitting a failed round [DWISC_RETRY_DELAY]")
	fs.IntVar(&cfg.AnnealingTime, "annealing-time", getEnvInt("DWISC_ANNEALING_TIME", 5), "Annealing time of each sample in microseconds [DWISC_ANNEALING_TIME]")
	fs.BoolVar(&cfg.AutoScale, "auto-scale", getEnvBool("DWISC_AUTO_SCALE", false), "Let the solver rescale the problem [DWISC_AUTO_SCALE]")
	fs.BoolVar(&cfg.FluxDriftCompensation, "flux-drift-compensation", getEnvBool("DWISC_FLUX_DRIFT_COMPENSATION", false), "Enable flux drift compensation [DWISC_FLUX_DRIFT_COMPENSATION]")
	fs.IntVar(&cfg.SpinReversalTransformRate, "spin-reversal-transform-rate", getEnvInt("DWISC_SPIN_REVERSAL_TRANSFORM_RATE", 0), "Reads between spin reversal transforms; 0 disables [DWISC_SPIN_REVERSAL_TRANSFORM_RATE]")
	fs.BoolVar(&cfg.Raw, "raw", getEnvBool("DWISC_RAW", false), "Keep every sample tagged by batch instead of a histogram [DWISC_RAW]")
	fs.IntVar(&cfg.ReportTop, "report-top", getEnvInt("DWISC_REPORT_TOP", 50), "Number of solutions listed in the log report [DWISC_REPORT_TOP]")

	fs.StringVar(&cfg.RunID, "run-id", getEnv("DWISC_RUN_ID", ""), "Run id for progress snapshots; random when empty [DWISC_RUN_ID]")
	fs.StringVar(&cfg.Listen, "listen", getEnv("DWISC_LISTEN", ""), "Status server address, e.g. :8082; disabled when empty [DWISC_LISTEN]")
	fs.StringVar(&cfg.Storage, "storage", getEnv("DWISC_STORAGE", "memory"), "Snapshot storage: memory or redis [DWISC_STORAGE]")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("DWISC_REDIS_ADDR", "localhost:6379"), "Redis server address [DWISC_REDIS_ADDR]")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("DWISC_REDIS_PASSWORD", ""), "Redis password [DWISC_REDIS_PASSWORD]")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("DWISC_REDIS_DB", 0), "Redis database number [DWISC_REDIS_DB]")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("DWISC_REDIS_TTL", 24*time.Hour), "Redis snapshot TTL [DWISC_REDIS_TTL]")
	fs.DurationVar(&cfg.SnapshotTTL, "snapshot-ttl", getEnvDuration("DWISC_SNAPSHOT_TTL", 0), "In-memory snapshot TTL; 0 keeps snapshots until overwritten [DWISC_SNAPSHOT_TTL]")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("DWISC_TLS_ENABLED", false), "Serve the status server over mutual TLS [DWISC_TLS_ENABLED]")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("DWISC_TLS_CERT_FILE", ""), "Status server certificate [DWISC_TLS_CERT_FILE]")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("DWISC_TLS_KEY_FILE", ""), "Status server private key [DWISC_TLS_KEY_FILE]")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("DWISC_TLS_CA_FILE", ""), "CA for client certificate verification [DWISC_TLS_CA_FILE]")

	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("DWISC_LOG_FORMAT", "text"), "Log format: text or json [DWISC_LOG_FORMAT]")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("DWISC_LOG_LEVEL", "info"), "Log level: debug, info, warn, error [DWISC_LOG_LEVEL]")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.NumReads <= 0 {
		return fmt.Errorf("num-reads must be > 0, got %d", c.NumReads)
	}
	if c.SolveNumReads <= 0 {
		return fmt.Errorf("solve-num-reads must be > 0, got %d", c.SolveNumReads)
	}
	if c.CallsPerRound <= 0 {
		return fmt.Errorf("calls-per-round must be > 0, got %d", c.CallsPerRound)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry-delay must be >= 0, got %s", c.RetryDelay)
	}
	if c.AnnealingTime < 0 {
		return fmt.Errorf("annealing-time must be >= 0, got %d", c.AnnealingTime)
	}
	if c.SpinReversalTransformRate < 0 {
		return fmt.Errorf("spin-reversal-transform-rate must be >= 0, got %d", c.SpinReversalTransformRate)
	}
	if c.ReportTop < 0 {
		return fmt.Errorf("report-top must be >= 0, got %d", c.ReportTop)
	}
	if c.SnapshotTTL < 0 {
		return fmt.Errorf("snapshot-ttl must be >= 0, got %s", c.SnapshotTTL)
	}
	switch c.Storage {
	case "memory", "redis":
	default:
		return fmt.Errorf("storage must be memory or redis, got %q", c.Storage)
	}
	if c.Storage == "redis" && c.RedisAddr == "" {
		return errors.New("redis-addr is required when storage=redis")
	}
	if c.TLS.Enabled && c.Listen == "" {
		return errors.New("tls-enabled requires listen")
	}
	return c.TLS.Validate()
}

// SpinReversalTransforms is the per-call transform count derived from the
// configured rate, or 0 when transforms are disabled.
func (c *Config) SpinReversalTransforms() int {
	if c.SpinReversalTransformRate <= 0 {
		return 0
	}
	return c.SolveNumReads / c.SpinReversalTransformRate
}

func defaultProfileFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dwisc.yaml"
	}
	return filepath.Join(home, "dwisc.yaml")
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
