// ABOUTME: Package documentation for the store package
// ABOUTME: Explains the persistence model for aliases and logins

// Package store provides persistence for gitea-matrix.
//
// Three relations are kept, all keyed by the Matrix user ID of the owner:
//
//   - server aliases: (user_id, alias) -> server URL
//   - logins: (user_id, server URL) -> API token
//   - repository aliases: (user_id, alias) -> repository
//
// The store is the only component allowed to mutate these relations.
// Inserts reject duplicates with ErrDuplicate instead of upserting, so a
// token rotation is an explicit remove-then-add. Lookups and removals of
// missing rows return ErrNotFound. Every mutating operation is a single-row
// SQLite statement, which is all the atomicity concurrent command handlers
// need: distinct users and distinct aliases never contend, and
// near-simultaneous add/remove on the same key degrades to a benign
// ErrDuplicate or ErrNotFound for one of the callers.
package store
