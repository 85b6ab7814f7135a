package models

import "errors"

// Error kinds surfaced across component boundaries. Callers match with
// errors.Is; boundaries wrap with fmt.Errorf("...: %w", err).
var (
	// ErrUnknownTenant indicates the tenant code is not in the registry.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrWindowOutOfRange indicates a window outside [1, 365] days.
	ErrWindowOutOfRange = errors.New("window out of range")

	// ErrUpstreamUnavailable indicates the warehouse or model provider
	// returned a terminal failure after retries. Fatal to the operation.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInsufficientData indicates the account sample is below the baseline
	// threshold. Not a failure: operations return an empty result with a
	// sentinel summary flag.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrSessionExpired indicates the session id no longer resolves.
	ErrSessionExpired = errors.New("session expired")

	// ErrModelProtocol indicates model output failed schema or grounding
	// validation after the retry budget was spent.
	ErrModelProtocol = errors.New("model protocol violation")

	// ErrProbeInconclusive indicates a probe ran but could not decide.
	// Recorded as evidence with fired=false, never fatal.
	ErrProbeInconclusive = errors.New("probe inconclusive")
)
