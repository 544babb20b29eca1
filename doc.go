// Package sesstore provides a session storage engine: durable keyed session
// records coupled with an ordered expiry index and a background sweeper that
// reclaims dead records without scanning the whole data set.
//
// The package is designed for concurrent server workloads: [Store] methods are
// safe to call from multiple goroutines after construction through [New].
//
// # Architecture boundaries
//
// sesstore is the public surface. It exposes [Store], [Sweeper], [Config],
// the [Table] contract and value types ([Record], [Event]). Durable backends
// live in subpackages (pgtable, redistable) behind the [Table] interface;
// identifier generation and per-record locking live under internal/ and are
// never exported.
//
// # What this package must NOT do
//
//   - Interpret session payloads. Data is an opaque blob, replaced whole,
//     never merged or validated.
//   - Issue or parse client-facing tokens. A session ID is the only identity
//     this package knows about; how it travels to clients is the caller's
//     problem.
//   - Distinguish "expired" from "never existed" to callers. Both surface as
//     [ErrNotFound] so session existence cannot be probed.
//
// # Expiry contract
//
// A record whose expiry has passed is dead for every read the instant the
// clock crosses it, whether or not the sweeper has physically purged it.
// The sweeper exists for space reclamation, not correctness.
package sesstore
