package maintenance

import (
	"time"

	"github.com/rs/zerolog"
)

// Reporter receives progress events from the cleanup and seed flows.
type Reporter interface {
	CleanupStarted(opts CleanupOptions)
	KeysRetrieved(count int)
	KeyClassified(key string, ttl int64, decision Decision, pos, total int)
	KeyDeleted(key string)
	CleanupFinished(summary CleanupSummary)

	SeedStarted(opts SeedOptions)
	KeyCreated(key string, ttl time.Duration, pos, total int)
	SeedFinished(summary SeedSummary)
}

// LogReporter writes progress as structured zerolog events.
type LogReporter struct {
	log zerolog.Logger
}

func NewLogReporter(log zerolog.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) CleanupStarted(opts CleanupOptions) {
	r.log.Info().
		Str("pattern", opts.Pattern).
		Int64("max_ttl", opts.MaxTTL).
		Bool("commit", opts.Commit).
		Msg("running cleanup")
}

func (r *LogReporter) KeysRetrieved(count int) {
	r.log.Info().Int("count", count).Msg("retrieved keys")
}

func (r *LogReporter) KeyClassified(key string, ttl int64, decision Decision, pos, total int) {
	r.log.Info().
		Str("key", key).
		Int64("ttl", ttl).
		Stringer("decision", decision).
		Int("pos", pos).
		Int("total", total).
		Msg(decisionMessage(decision))
}

func decisionMessage(d Decision) string {
	switch d {
	case DecisionDelete:
		return "delete"
	case DecisionManagedSkip:
		return "managed, skipping"
	default:
		return "skipping"
	}
}

func (r *LogReporter) KeyDeleted(key string) {
	r.log.Info().Str("key", key).Msg("deleted")
}

func (r *LogReporter) CleanupFinished(s CleanupSummary) {
	r.log.Info().
		Int("scanned", s.Scanned).
		Int("delete_candidates", s.DeleteCandidates).
		Int("deleted", s.Deleted).
		Int("skipped", s.Skipped).
		Int("managed", s.Managed).
		Msg("cleanup finished")
}

func (r *LogReporter) SeedStarted(opts SeedOptions) {
	r.log.Info().
		Str("prefix", opts.Prefix).
		Int("num_keys", opts.NumKeys).
		Float64("threshold", opts.Threshold).
		Int64("ttl", int64(opts.TTL/time.Second)).
		Msg("running seed")
}

func (r *LogReporter) KeyCreated(key string, ttl time.Duration, pos, total int) {
	ev := r.log.Info().Str("key", key)
	if ttl > 0 {
		ev = ev.Int64("ttl", int64(ttl/time.Second))
	} else {
		ev = ev.Str("ttl", "none")
	}
	ev.Int("pos", pos).Int("total", total).Msg("created key")
}

func (r *LogReporter) SeedFinished(s SeedSummary) {
	r.log.Info().
		Int("created", s.Created).
		Int("with_expiry", s.WithExpiry).
		Msg("seed finished")
}
