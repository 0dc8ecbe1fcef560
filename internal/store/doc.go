// Package store provides SQLite-backed durable storage for cached profiles
// and the user's decision against each one.
//
// The store keeps one table, profiles, with:
//   - the remote fields of a Profile (id, full_name, age, city, image_url)
//   - decision: "none", "accepted" or "declined"
//   - updated_at: unix nanoseconds of the last write to the row
//
// # Invariants
//
// Exactly one row per profile id. Enforced by the unique index
// idx_profiles_id, created by migration v1 after collapsing any legacy
// duplicates. RemoveDuplicates repairs the table if the index was bypassed.
//
// Upsert never touches decision. SetDecision touches only decision and
// updated_at.
//
// updated_at is strictly increasing across writes made by one Store, even
// when the wall clock does not advance between two writes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: every operation is serialized, and each mutating
//     operation runs in its own transaction
package store
