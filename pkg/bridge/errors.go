package bridge

import "errors"

// Errors returned by bridge operations.
var (
	// ErrRandomSource is returned when the secure random source cannot
	// produce key material. This is fatal and not retryable locally.
	ErrRandomSource = errors.New("bridge: random source unavailable")

	// ErrInvalidKey is returned when a key is not exactly 32 bytes.
	ErrInvalidKey = errors.New("bridge: key must be exactly 32 bytes")

	// ErrInvalidNonce is returned when a nonce is not exactly 12 bytes.
	ErrInvalidNonce = errors.New("bridge: nonce must be exactly 12 bytes")

	// ErrDecryptionFailed is returned when an envelope fails to open,
	// indicating corruption, tampering or a key mismatch.
	ErrDecryptionFailed = errors.New("bridge: failed to decrypt bridge response")

	// ErrProtocolViolation is returned when the bridge sends a response
	// outside the defined protocol, such as an unknown status string.
	ErrProtocolViolation = errors.New("bridge: protocol violation")

	// ErrSessionTerminal is returned when polling a session that already
	// delivered a terminal status. A fresh session must be established
	// for a new verification attempt.
	ErrSessionTerminal = errors.New("bridge: session already reached a terminal status")
)

// Errors returned by bridge URL validation, in check order.
var (
	// ErrNotHTTPS is returned when a non-loopback bridge URL is not https.
	ErrNotHTTPS = errors.New("bridge: bridge URL must use https")

	// ErrNotDefaultPort is returned when a bridge URL carries an explicit port.
	ErrNotDefaultPort = errors.New("bridge: bridge URL must use the default port")

	// ErrContainsPath is returned when a bridge URL has a non-root path.
	ErrContainsPath = errors.New("bridge: bridge URL must not contain a path")

	// ErrContainsQuery is returned when a bridge URL has a query string.
	ErrContainsQuery = errors.New("bridge: bridge URL must not contain a query")

	// ErrContainsFragment is returned when a bridge URL has a fragment.
	ErrContainsFragment = errors.New("bridge: bridge URL must not contain a fragment")
)
