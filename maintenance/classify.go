package maintenance

import (
	"strconv"
	"strings"
)

// Decision is the outcome of classifying a single key during cleanup.
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionDelete
	DecisionManagedSkip
)

func (d Decision) String() string {
	switch d {
	case DecisionDelete:
		return "delete"
	case DecisionManagedSkip:
		return "managed_skip"
	default:
		return "skip"
	}
}

// ExclusionPredicate reports whether a key is owned by another system and
// must never be considered for deletion.
type ExclusionPredicate func(key string) bool

// ManagedNamespace excludes keys of the form "<prefix>:...:<last>" where
// prefix is one of prefixes and last is not an unsigned integer (one
// leading "+" is allowed, so "+7" counts as a number). Queue
// libraries such as bull keep their bookkeeping under names like
// "bull:emails:wait" and their jobs under "bull:emails:42"; only the jobs
// are fair game. A key without a colon is never excluded.
func ManagedNamespace(prefixes ...string) ExclusionPredicate {
	set := make(map[string]struct{}, len(prefixes))
	for _, p := range prefixes {
		set[p] = struct{}{}
	}

	return func(key string) bool {
		if len(set) == 0 {
			return false
		}
		first, rest, found := strings.Cut(key, ":")
		if !found {
			return false
		}
		if _, ok := set[first]; !ok {
			return false
		}
		last := rest
		if i := strings.LastIndexByte(rest, ':'); i >= 0 {
			last = rest[i+1:]
		}
		_, err := strconv.ParseUint(strings.TrimPrefix(last, "+"), 10, 64)
		return err != nil
	}
}

// Classify decides what cleanup does with a key. It has no side effects.
func Classify(key string, ttl, maxTTL int64, exclude ExclusionPredicate) Decision {
	if exclude != nil && exclude(key) {
		return DecisionManagedSkip
	}
	if ttl <= maxTTL {
		return DecisionDelete
	}
	return DecisionSkip
}
