package bridge

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DefaultBridgeURL is the bridge service hosted by Worldcoin. Only run a
// different bridge if you operate your own relay.
const DefaultBridgeURL = "https://bridge.worldcoin.org"

// AppID uniquely identifies the application requesting verification, as
// issued by the Developer Portal. Valid app ids always start with "app_".
type AppID string

// AppIDError is returned when an app id does not match the required format.
// It carries the offending input.
type AppIDError struct {
	Input string
}

// Error implements the error interface.
func (e *AppIDError) Error() string {
	return fmt.Sprintf("bridge: invalid app id, expected app_*, got %q", e.Input)
}

// ParseAppID validates and returns an app id. Any string not starting with
// the "app_" prefix is rejected.
func ParseAppID(s string) (AppID, error) {
	if !strings.HasPrefix(s, "app_") {
		return "", &AppIDError{Input: s}
	}
	return AppID(s), nil
}

// UncheckedAppID returns an app id without validating it. The caller accepts
// the precondition that s is already a valid app id; passing anything else
// results in bridge requests that the protocol will reject. Use ParseAppID
// unless the input is known-good.
func UncheckedAppID(s string) AppID {
	return AppID(s)
}

// IsStaging reports whether the app id belongs to a staging app.
func (a AppID) IsStaging() bool {
	return strings.Contains(string(a), "staging")
}

// String returns the app id as a plain string.
func (a AppID) String() string {
	return string(a)
}

// BridgeURL is a validated bridge base URL. A BridgeURL is either a loopback
// address (any port or path, for local development), or an https URL on the
// default port with a root path and no query or fragment.
type BridgeURL struct {
	u *url.URL
}

// DefaultBridge returns the bridge URL of the default hosted bridge service.
func DefaultBridge() BridgeURL {
	u, err := url.Parse(DefaultBridgeURL)
	if err != nil {
		panic(fmt.Sprintf("default bridge URL must parse: %v", err))
	}
	return BridgeURL{u: u}
}

// ParseBridgeURL parses and validates a bridge base URL.
func ParseBridgeURL(raw string) (BridgeURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return BridgeURL{}, fmt.Errorf("bridge: parse bridge URL: %w", err)
	}
	return BridgeURLFrom(u)
}

// BridgeURLFrom validates an already-parsed URL as a bridge base URL.
// Checks are applied in a fixed order: the loopback bypass first, then
// scheme, port, path, query and fragment; the first violated rule is
// returned.
func BridgeURLFrom(u *url.URL) (BridgeURL, error) {
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return BridgeURL{u: u}, nil
	}

	if u.Scheme != "https" {
		return BridgeURL{}, ErrNotHTTPS
	}
	if u.Port() != "" {
		return BridgeURL{}, ErrNotDefaultPort
	}
	if u.Path != "" && u.Path != "/" {
		return BridgeURL{}, ErrContainsPath
	}
	if u.RawQuery != "" {
		return BridgeURL{}, ErrContainsQuery
	}
	if u.Fragment != "" {
		return BridgeURL{}, ErrContainsFragment
	}

	return BridgeURL{u: u}, nil
}

// IsDefault reports whether this is the default hosted bridge.
func (b BridgeURL) IsDefault() bool {
	if b.u == nil {
		return false
	}
	return b.u.Scheme == "https" &&
		b.u.Host == "bridge.worldcoin.org" &&
		(b.u.Path == "" || b.u.Path == "/")
}

// String returns the bridge base URL.
func (b BridgeURL) String() string {
	if b.u == nil {
		return ""
	}
	return b.u.String()
}

// isZero reports whether this is the zero value, i.e. no URL was provided.
func (b BridgeURL) isZero() bool {
	return b.u == nil
}

// endpoint builds an absolute URL on the bridge host. path must be absolute;
// it replaces any path the (loopback) base URL might carry.
func (b BridgeURL) endpoint(path string) string {
	return b.u.Scheme + "://" + b.u.Host + path
}

// VerificationLevel is the minimum strength of identity credential required
// for a verification, or the strength a returned proof was produced with.
type VerificationLevel string

// Verification levels, strongest first.
const (
	// VerificationLevelOrb requires the strongest credential.
	VerificationLevelOrb VerificationLevel = "orb"
	// VerificationLevelDevice is weaker and accepts either credential.
	VerificationLevelDevice VerificationLevel = "device"
)

// CredentialTypes returns the ordered list of credential types acceptable at
// this level, as sent to the bridge.
func (v VerificationLevel) CredentialTypes() []CredentialType {
	switch v {
	case VerificationLevelDevice:
		return []CredentialType{CredentialTypeOrb, CredentialTypeDevice}
	default:
		return []CredentialType{CredentialTypeOrb}
	}
}

// CredentialType describes the credential that actually satisfied a
// verification request, as reported by the bridge.
type CredentialType string

// Credential types, strongest first.
const (
	CredentialTypeOrb    CredentialType = "orb"
	CredentialTypeDevice CredentialType = "device"
)

// VerificationLevel converts the credential type into the corresponding
// verification level. The conversion is lossless.
func (c CredentialType) VerificationLevel() VerificationLevel {
	if c == CredentialTypeDevice {
		return VerificationLevelDevice
	}
	return VerificationLevelOrb
}

// UnmarshalJSON rejects credential types outside the closed enum, so a
// malformed bridge response fails loudly instead of being silently accepted.
func (c *CredentialType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch CredentialType(s) {
	case CredentialTypeOrb, CredentialTypeDevice:
		*c = CredentialType(s)
		return nil
	default:
		return fmt.Errorf("%w: unknown credential type %q", ErrProtocolViolation, s)
	}
}

// AppError is a protocol-level rejection reason returned inside the
// encrypted envelope by the user's wallet, or inferred from a failed bridge
// exchange. It is a legitimate terminal outcome of the protocol, delivered
// through Status rather than as an error of the polling call.
type AppError string

// The closed set of rejection reasons.
const (
	ErrorConnectionFailed        AppError = "connection_failed"
	ErrorVerificationRejected    AppError = "verification_rejected"
	ErrorMaxVerificationsReached AppError = "max_verifications_reached"
	ErrorCredentialUnavailable   AppError = "credential_unavailable"
	ErrorMalformedRequest        AppError = "malformed_request"
	ErrorInvalidNetwork          AppError = "invalid_network"
	ErrorInclusionProofFailed    AppError = "inclusion_proof_failed"
	ErrorInclusionProofPending   AppError = "inclusion_proof_pending"
	ErrorUnexpectedResponse      AppError = "unexpected_response"
	ErrorFailedByHostApp         AppError = "failed_by_host_app"
	ErrorGeneric                 AppError = "generic_error"
)

var appErrorMessages = map[AppError]string{
	ErrorConnectionFailed:        "Failed to connect to the World App. Please create a new session and try again.",
	ErrorVerificationRejected:    "The user rejected the verification request in the World App.",
	ErrorMaxVerificationsReached: "The user already verified the maximum number of times for this action.",
	ErrorCredentialUnavailable:   "The user does not have the verification level required by this app.",
	ErrorMalformedRequest:        "There was a problem with this request. Please try again or contact the app owner.",
	ErrorInvalidNetwork:          "Invalid network. If you are the app owner, visit docs.worldcoin.org/test for details.",
	ErrorInclusionProofFailed:    "There was an issue fetching the user's credential. Please try again.",
	ErrorInclusionProofPending:   "The user's identity is still being registered. Please wait a few minutes and try again.",
	ErrorUnexpectedResponse:      "Unexpected response from the user's World App. Please try again.",
	ErrorFailedByHostApp:         "Verification failed by the app. Please contact the app owner for details.",
	ErrorGeneric:                 "Something unexpected went wrong. Please try again.",
}

// Error implements the error interface with a human-readable message.
func (e AppError) Error() string {
	if msg, ok := appErrorMessages[e]; ok {
		return msg
	}
	return "unrecognized bridge error: " + string(e)
}

// Proof is the zero-knowledge proof of verification produced by a confirmed
// session. All hash fields are 0x-prefixed hex strings, ABI encoded.
type Proof struct {
	// Proof is the zero-knowledge proof of the verification.
	Proof string `json:"proof"`
	// MerkleRoot commits to the set of identities verified at proof time.
	MerkleRoot string `json:"merkle_root"`
	// NullifierHash is the user's unique identifier for this app and action.
	NullifierHash string `json:"nullifier_hash"`
	// VerificationLevel is the strongest credential the user verified with.
	VerificationLevel VerificationLevel `json:"verification_level"`
}
