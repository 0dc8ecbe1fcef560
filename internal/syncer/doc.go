// Package syncer coordinates load cycles between the local store and the
// remote fetcher and publishes the resulting state to observers.
//
// A load cycle reads the cache and publishes it immediately, then, if the
// connectivity flag reports online, fetches a batch, reconciles it into the
// store, re-reads and publishes again:
//
//	Idle -> LoadingCache -> (online ? RefreshingNetwork : Idle) -> Idle
//
// Only one cycle is current at a time. Starting a cycle cancels the previous
// one, and a superseded or cancelled cycle never publishes. Every failure is
// caught here and surfaced as a *SyncError on the published State; nothing
// below this package reaches the presentation layer as a raw error.
//
// Thread-safety: every exported method of *Syncer is safe for concurrent use.
package syncer
