package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	CommandCleanup = "cleanup"
	CommandSeed    = "seed"
)

// ErrUsage marks errors caused by bad command line input.
var ErrUsage = errors.New("usage error")

// Config represents the configuration of a single invocation
type Config struct {
	// Redis connection URL
	RedisURL string `env:"REDIS_URL"`

	Logging  LoggingConfig
	Metrics  MetricsConfig
	Throttle ThrottleConfig
	Cleanup  CleanupConfig
	Seed     SeedConfig

	// Command selected on the command line
	Command string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	// Log level: "debug", "info", "warn", "error"
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Log format: "text", "json"
	Format string `env:"LOG_FORMAT" envDefault:"text"`

	// Log file path (empty for stderr)
	Output string `env:"LOG_OUTPUT" envDefault:""`

	// Enable log rotation when writing to a file
	Rotation bool `env:"LOG_ROTATION" envDefault:"true"`

	// Max log file size in MB
	MaxSize int `env:"LOG_MAX_SIZE" envDefault:"100"`

	// Number of backup files to keep
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"7"`

	// Max age in days
	MaxAge int `env:"LOG_MAX_AGE" envDefault:"30"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	// Pushgateway URL; metrics are only pushed when set
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`

	// Job label used for the push
	Job string `env:"METRICS_JOB" envDefault:"redis_cleanup"`
}

// ThrottleConfig paces deletions and seed writes
type ThrottleConfig struct {
	// Writes per second; 0 disables pacing
	Rate float64 `env:"WRITE_RATE" envDefault:"0"`

	// Writes allowed back to back before pacing starts
	Burst int `env:"WRITE_BURST" envDefault:"1"`
}

// CleanupConfig holds the options of the cleanup command
type CleanupConfig struct {
	Pattern string
	Commit  bool
	MaxTTL  int64

	// First key segments that mark keys owned by another system.
	// Read from MANAGED_PREFIXES by Parse, where an empty value clears it.
	ManagedPrefixes []string

	// COUNT hint for SCAN
	ScanCount int64 `env:"SCAN_COUNT" envDefault:"1000"`
}

// SeedConfig holds the options of the seed command
type SeedConfig struct {
	Prefix     string
	NumKeys    uint
	Threshold  float64
	TTLSeconds uint64
}

// TTL returns the seed expiry as a duration
func (s SeedConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// Parse loads configuration from, in increasing priority:
// 1. Default values
// 2. A .env file in the working directory, if present
// 3. Environment variables
// 4. Command line flags
func Parse(args []string, output io.Writer) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Cleanup: CleanupConfig{Pattern: "*", MaxTTL: -1, ManagedPrefixes: []string{"bull"}},
		Seed:    SeedConfig{NumKeys: 40000, Threshold: 0.1, TTLSeconds: 10},
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	if v, ok := os.LookupEnv("MANAGED_PREFIXES"); ok {
		_ = (*listValue)(&cfg.Cleanup.ManagedPrefixes).Set(v)
	}

	global := flag.NewFlagSet("redis-cleanup", flag.ContinueOnError)
	global.SetOutput(output)
	registerGlobalFlags(global, cfg)
	global.Usage = func() { printUsage(global) }

	if err := global.Parse(args); err != nil {
		return nil, usageError(err)
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return nil, fmt.Errorf("%w: a command is required", ErrUsage)
	}

	cfg.Command = rest[0]
	switch cfg.Command {
	case CommandCleanup:
		if err := parseCleanup(cfg, rest[1:], output); err != nil {
			return nil, err
		}
	case CommandSeed:
		if err := parseSeed(cfg, rest[1:], output); err != nil {
			return nil, err
		}
	default:
		global.Usage()
		return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Command)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	return cfg, nil
}

func registerGlobalFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL, or a postgres:// DSN for a table-backed keyspace (env REDIS_URL)")
	fs.StringVar(&cfg.RedisURL, "r", cfg.RedisURL, "shorthand for --redis-url")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (text, json)")
}

func registerThrottleFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Float64Var(&cfg.Throttle.Rate, "rate", cfg.Throttle.Rate, "Max writes per second, 0 for no limit (env WRITE_RATE)")
	fs.IntVar(&cfg.Throttle.Burst, "burst", cfg.Throttle.Burst, "Writes allowed back to back before --rate applies (env WRITE_BURST)")
}

func parseCleanup(cfg *Config, args []string, output io.Writer) error {
	fs := flag.NewFlagSet(CommandCleanup, flag.ContinueOnError)
	fs.SetOutput(output)
	registerGlobalFlags(fs, cfg)
	registerThrottleFlags(fs, cfg)

	c := &cfg.Cleanup
	fs.BoolVar(&c.Commit, "commit", c.Commit, "Delete matching keys instead of only reporting them")
	fs.Int64Var(&c.MaxTTL, "max-ttl", c.MaxTTL, "Max ttl in seconds for keys that get removed (-1: keys without ttl)")
	fs.Int64Var(&c.MaxTTL, "m", c.MaxTTL, "shorthand for --max-ttl")
	fs.Var((*listValue)(&c.ManagedPrefixes), "managed-prefix", "Comma separated key prefixes owned by another system (env MANAGED_PREFIXES)")
	fs.Int64Var(&c.ScanCount, "scan-count", c.ScanCount, "COUNT hint for SCAN (env SCAN_COUNT)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: redis-cleanup [global flags] cleanup [KEYS] [flags]\n\n")
		fmt.Fprintf(fs.Output(), "Clean up the redis instance. KEYS is a glob pattern (default \"*\").\n\n")
		fs.PrintDefaults()
	}

	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return usageError(err)
	}
	switch len(positional) {
	case 0:
	case 1:
		c.Pattern = positional[0]
	default:
		return fmt.Errorf("%w: cleanup takes a single KEYS pattern, got %d", ErrUsage, len(positional))
	}
	return nil
}

func parseSeed(cfg *Config, args []string, output io.Writer) error {
	fs := flag.NewFlagSet(CommandSeed, flag.ContinueOnError)
	fs.SetOutput(output)
	registerGlobalFlags(fs, cfg)
	registerThrottleFlags(fs, cfg)

	s := &cfg.Seed
	fs.StringVar(&s.Prefix, "prefix", s.Prefix, "Prefix for the keys to create")
	fs.StringVar(&s.Prefix, "p", s.Prefix, "shorthand for --prefix")
	fs.UintVar(&s.NumKeys, "num-keys", s.NumKeys, "Number of keys to create")
	fs.UintVar(&s.NumKeys, "n", s.NumKeys, "shorthand for --num-keys")
	fs.Float64Var(&s.Threshold, "threshold", s.Threshold, "Fraction of keys that get a ttl, in [0,1]")
	fs.Float64Var(&s.Threshold, "t", s.Threshold, "shorthand for --threshold")
	fs.Uint64Var(&s.TTLSeconds, "ttl", s.TTLSeconds, "TTL in seconds for the keys that get one")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: redis-cleanup [global flags] seed [flags]\n\n")
		fmt.Fprintf(fs.Output(), "Seed the redis instance with some dummy values.\n\n")
		fs.PrintDefaults()
	}

	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return usageError(err)
	}
	if len(positional) > 0 {
		return fmt.Errorf("%w: seed takes no arguments, got %q", ErrUsage, positional)
	}
	return nil
}

// parseInterleaved parses flags that may appear before or after positional
// arguments. Everything after "--" is positional.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		consumed := len(args) - len(rest)
		if consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func usageError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

func printUsage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "Usage: redis-cleanup [global flags] <command> [flags]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  cleanup   Clean up the redis instance\n")
	fmt.Fprintf(w, "  seed      Seed the redis instance with some dummy values\n\n")
	fmt.Fprintf(w, "Global flags:\n")
	fs.PrintDefaults()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("redis url is required (--redis-url or REDIS_URL)")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return fmt.Errorf("metrics job cannot be empty when a pushgateway is set")
	}

	if r := c.Throttle.Rate; math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return fmt.Errorf("rate must be a non-negative number, got %v", r)
	}
	if c.Throttle.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Throttle.Burst)
	}

	switch c.Command {
	case CommandCleanup:
		if c.Cleanup.Pattern == "" {
			return fmt.Errorf("keys pattern cannot be empty")
		}
		if c.Cleanup.ScanCount <= 0 {
			return fmt.Errorf("scan count must be positive, got %d", c.Cleanup.ScanCount)
		}
	case CommandSeed:
		t := c.Seed.Threshold
		if math.IsNaN(t) || t < 0 || t > 1 {
			return fmt.Errorf("threshold must be between 0 and 1, got %v", t)
		}
		if c.Seed.TTLSeconds == 0 {
			return fmt.Errorf("ttl must be at least 1 second")
		}
	}

	return nil
}

// listValue is a comma separated flag value. An empty string clears it.
type listValue []string

func (l *listValue) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *listValue) Set(s string) error {
	*l = (*l)[:0]
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}
