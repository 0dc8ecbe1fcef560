// Package profile defines the canonical domain types shared by every other
// package in profilesync.
//
// This package contains type definitions and their validation only. All
// other internal packages import profile; profile imports nothing internal.
//
// Key constraints:
//   - A Profile is only produced by New, so an invalid Profile (empty id,
//     negative age, relative image URL) cannot exist
//   - Profiles are values and are never mutated after construction
//   - Decision values serialize as the lowercase names "none", "accepted"
//     and "declined"
package profile
