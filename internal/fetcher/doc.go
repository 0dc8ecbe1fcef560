// Package fetcher retrieves batches of profiles from the remote random-user
// endpoint.
//
// A Fetch issues one HTTP GET per attempt with a "results" query parameter,
// classifies every failure into a FetchError kind, and retries according to
// a RetryPolicy with linear backoff (300ms, 600ms by default).
//
// Malformed records (empty uuid, non-absolute image URL, negative age) fail
// the whole batch with KindDecodingFailure. The fetcher never returns a
// partially valid batch.
package fetcher
