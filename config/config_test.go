package config

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Parse reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"REDIS_URL", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
		"PUSHGATEWAY_URL", "METRICS_JOB", "SCAN_COUNT", "MANAGED_PREFIXES",
		"WRITE_RATE", "WRITE_BURST",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var out bytes.Buffer
	return Parse(args, &out)
}

func TestParseCleanupDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(t, "--redis-url", "redis://localhost:6379", "cleanup")
	require.NoError(t, err)

	assert.Equal(t, CommandCleanup, cfg.Command)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "*", cfg.Cleanup.Pattern)
	assert.False(t, cfg.Cleanup.Commit)
	assert.Equal(t, int64(-1), cfg.Cleanup.MaxTTL)
	assert.Equal(t, []string{"bull"}, cfg.Cleanup.ManagedPrefixes)
	assert.Equal(t, int64(1000), cfg.Cleanup.ScanCount)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "redis_cleanup", cfg.Metrics.Job)
	assert.Equal(t, ThrottleConfig{Rate: 0, Burst: 1}, cfg.Throttle)
}

// Flags and the KEYS pattern can appear in any order
func TestParseCleanupInterleaved(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(t, "-r", "redis://h:1", "cleanup", "bull:*", "--commit", "--max-ttl", "100")
	require.NoError(t, err)
	assert.Equal(t, "bull:*", cfg.Cleanup.Pattern)
	assert.True(t, cfg.Cleanup.Commit)
	assert.Equal(t, int64(100), cfg.Cleanup.MaxTTL)

	cfg, err = parse(t, "-r", "redis://h:1", "cleanup", "-m", "-5", "--commit=false", "session:*")
	require.NoError(t, err)
	assert.Equal(t, "session:*", cfg.Cleanup.Pattern)
	assert.False(t, cfg.Cleanup.Commit)
	assert.Equal(t, int64(-5), cfg.Cleanup.MaxTTL)
}

func TestParseCleanupDoubleDash(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(t, "-r", "redis://h:1", "cleanup", "--", "-weird*")
	require.NoError(t, err)
	assert.Equal(t, "-weird*", cfg.Cleanup.Pattern)
}

func TestParseCleanupManagedPrefixes(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(t, "-r", "redis://h:1", "cleanup", "--managed-prefix", "bull, bee ,")
	require.NoError(t, err)
	assert.Equal(t, []string{"bull", "bee"}, cfg.Cleanup.ManagedPrefixes)

	cfg, err = parse(t, "-r", "redis://h:1", "cleanup", "--managed-prefix", "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Cleanup.ManagedPrefixes)
}

// An empty MANAGED_PREFIXES turns the exclusion off, same as the flag
func TestParseManagedPrefixesEmptyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MANAGED_PREFIXES", "")

	cfg, err := parse(t, "-r", "redis://h:1", "cleanup")
	require.NoError(t, err)
	assert.Empty(t, cfg.Cleanup.ManagedPrefixes)

	cfg, err = parse(t, "-r", "redis://h:1", "cleanup", "--managed-prefix", "bee")
	require.NoError(t, err)
	assert.Equal(t, []string{"bee"}, cfg.Cleanup.ManagedPrefixes)
}

func TestParseCleanupTooManyPatterns(t *testing.T) {
	clearEnv(t)

	_, err := parse(t, "-r", "redis://h:1", "cleanup", "a*", "b*")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUsage))
}

func TestParseSeedDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(t, "-r", "redis://h:1", "seed")
	require.NoError(t, err)

	assert.Equal(t, CommandSeed, cfg.Command)
	assert.Equal(t, "", cfg.Seed.Prefix)
	assert.Equal(t, uint(40000), cfg.Seed.NumKeys)
	assert.Equal(t, 0.1, cfg.Seed.Threshold)
	assert.Equal(t, uint64(10), cfg.Seed.TTLSeconds)
	assert.Equal(t, 10*time.Second, cfg.Seed.TTL())
}

func TestParseSeedFlags(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(t, "-r", "redis://h:1", "seed", "-p", "test", "--num-keys", "5", "-t", "1", "--ttl", "30")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Seed.Prefix)
	assert.Equal(t, uint(5), cfg.Seed.NumKeys)
	assert.Equal(t, 1.0, cfg.Seed.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Seed.TTL())
}

func TestParseSeedValidation(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"threshold above one", []string{"--threshold", "1.5"}},
		{"negative threshold", []string{"--threshold", "-0.1"}},
		{"zero ttl", []string{"--ttl", "0"}},
		{"negative num keys", []string{"--num-keys", "-1"}},
		{"stray argument", []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-r", "redis://h:1", "seed"}, tt.args...)
			_, err := parse(t, args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUsage), "got %v", err)
		})
	}
}

func TestParseRedisURLFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://from-env:6379")

	cfg, err := parse(t, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, "redis://from-env:6379", cfg.RedisURL)

	// flags win over the environment
	cfg, err = parse(t, "--redis-url", "redis://from-flag:6379", "cleanup")
	require.NoError(t, err)
	assert.Equal(t, "redis://from-flag:6379", cfg.RedisURL)
}

func TestParseEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://h:1")
	t.Setenv("MANAGED_PREFIXES", "bull,bee")
	t.Setenv("SCAN_COUNT", "50")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")

	cfg, err := parse(t, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, []string{"bull", "bee"}, cfg.Cleanup.ManagedPrefixes)
	assert.Equal(t, int64(50), cfg.Cleanup.ScanCount)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "http://pushgateway:9091", cfg.Metrics.PushgatewayURL)
}

func TestParseThrottle(t *testing.T) {
	clearEnv(t)
	t.Setenv("WRITE_RATE", "100")

	cfg, err := parse(t, "-r", "redis://h:1", "seed", "--burst", "10")
	require.NoError(t, err)
	assert.Equal(t, ThrottleConfig{Rate: 100, Burst: 10}, cfg.Throttle)

	cfg, err = parse(t, "-r", "redis://h:1", "cleanup", "--rate", "2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Throttle.Rate)
}

func TestParseErrors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing redis url", []string{"cleanup"}},
		{"missing command", []string{"-r", "redis://h:1"}},
		{"unknown command", []string{"-r", "redis://h:1", "purge"}},
		{"unknown flag", []string{"-r", "redis://h:1", "cleanup", "--force"}},
		{"bad max ttl", []string{"-r", "redis://h:1", "cleanup", "--max-ttl", "soon"}},
		{"bad log level", []string{"-r", "redis://h:1", "--log-level", "loud", "cleanup"}},
		{"bad log format", []string{"-r", "redis://h:1", "--log-format", "xml", "cleanup"}},
		{"zero scan count", []string{"-r", "redis://h:1", "cleanup", "--scan-count", "0"}},
		{"negative rate", []string{"-r", "redis://h:1", "cleanup", "--rate", "-5"}},
		{"zero burst", []string{"-r", "redis://h:1", "seed", "--rate", "5", "--burst", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUsage), "got %v", err)
		})
	}
}

func TestParseHelp(t *testing.T) {
	clearEnv(t)

	var out bytes.Buffer
	_, err := Parse([]string{"-r", "redis://h:1", "cleanup", "-h"}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, out.String(), "max-ttl")
}
