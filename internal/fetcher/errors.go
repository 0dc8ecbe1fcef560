package fetcher

import (
	"errors"
	"fmt"
)

// ErrInvalidCount is returned when Fetch is called with a non-positive count.
var ErrInvalidCount = errors.New("fetch count must be positive")

// Kind classifies a fetch failure.
type Kind string

const (
	// KindBadStatus indicates a response status outside 200-299.
	KindBadStatus Kind = "bad_status"

	// KindEmptyResponse indicates the server returned no usable body.
	KindEmptyResponse Kind = "empty_response"

	// KindDecodingFailure indicates the body did not match the expected shape,
	// or a record in it could not be turned into a valid Profile.
	KindDecodingFailure Kind = "decoding_failure"

	// KindTransport indicates a connection-level failure.
	KindTransport Kind = "transport"
)

// FetchError is a classified remote fetch failure.
type FetchError struct {
	Kind       Kind
	StatusCode int   // Set for KindBadStatus
	Cause      error // Underlying error, if any
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindBadStatus:
		return fmt.Sprintf("server responded with %d", e.StatusCode)
	case KindEmptyResponse:
		return "no data received from server"
	case KindDecodingFailure:
		return fmt.Sprintf("failed to decode response: %v", e.Cause)
	case KindTransport:
		return fmt.Sprintf("network error: %v", e.Cause)
	}
	return fmt.Sprintf("fetch error [%s]: %v", e.Kind, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// KindOf extracts the failure kind from err.
// Returns "" if err is not a FetchError.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func badStatus(code int) *FetchError {
	return &FetchError{Kind: KindBadStatus, StatusCode: code}
}

func emptyResponse() *FetchError {
	return &FetchError{Kind: KindEmptyResponse}
}

func decodingFailure(cause error) *FetchError {
	return &FetchError{Kind: KindDecodingFailure, Cause: cause}
}

func transport(cause error) *FetchError {
	return &FetchError{Kind: KindTransport, Cause: cause}
}
