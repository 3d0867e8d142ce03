// Package fabriperr defines the sentinel errors the dispatch fabric
// produces, so callers can branch on failure kind with errors.Is instead of
// string matching.
package fabriperr

import "errors"

var (
	// ErrLockTimeout means the registry mutex could not be acquired within
	// the retry budget.
	ErrLockTimeout = errors.New("fabric: registry lock timeout")

	// ErrRegistryIO means a read or write of the registry file failed.
	ErrRegistryIO = errors.New("fabric: registry i/o error")

	// ErrPortExhausted means no free port was found in the reserved range.
	ErrPortExhausted = errors.New("fabric: no free port in reserved range")

	// ErrBodyTooLarge means an incoming request body exceeded the
	// configured cap.
	ErrBodyTooLarge = errors.New("fabric: request body too large")

	// ErrBadRequest means the request body failed to parse or violated the
	// expected schema.
	ErrBadRequest = errors.New("fabric: bad request")

	// ErrWrongInstance means a send request's target id did not match the
	// receiving instance's id.
	ErrWrongInstance = errors.New("fabric: instance not found on this server")

	// ErrDownstreamUnavailable means the host-provided send callback
	// reported that the delivery target is unreachable.
	ErrDownstreamUnavailable = errors.New("fabric: downstream unavailable")

	// ErrDownstreamFailed means the host-provided send callback returned
	// an unexpected error.
	ErrDownstreamFailed = errors.New("fabric: downstream delivery failed")

	// ErrForbiddenOrigin means the request's Origin header did not match
	// the allowed-origin policy.
	ErrForbiddenOrigin = errors.New("fabric: forbidden origin")
)

// WrapDownstreamUnavailable reports cause as an ErrDownstreamUnavailable,
// for send callbacks that want the HTTP Surface to answer 503 rather than
// 500 for a specific failure (e.g. the downstream collaborator's endpoint
// refused the connection).
func WrapDownstreamUnavailable(cause error) error {
	return errors.Join(ErrDownstreamUnavailable, cause)
}
