// Package idgen generates identifiers for entities that are not observable
// records (projects, events, internal job ids). Observable records (evidence,
// propositions, interviews) use the formatted monotonic ids minted by
// internal/store instead — see store.NextID.
package idgen

import "github.com/google/uuid"

// Generator produces a new identifier on each call.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUIDv7 strings: time-ordered,
// collision-resistant, safe as SQLite primary keys without a counter table.
func UUIDv7() Generator {
	return func() string {
		id, err := uuid.NewV7()
		if err != nil {
			// Entropy source failure; fall back to a random UUID rather than
			// panicking the caller's request path.
			return uuid.New().String()
		}
		return id.String()
	}
}

// Prefixed wraps gen, prepending prefix and a separating underscore to every
// generated id.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + "_" + gen()
	}
}

// Default is the package-level Generator used when a caller has no specific
// need for prefixing or determinism.
var Default Generator = UUIDv7()

// New returns a new id from Default.
func New() string { return Default() }
