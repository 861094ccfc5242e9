// Package bridge implements the encrypted Wallet Bridge session protocol.
//
// A relying application requests a zero-knowledge identity verification from
// a user's wallet via an intermediary relay, the bridge. The bridge never
// sees plaintext: requests and responses travel as AES-256-GCM envelopes,
// and the symmetric key reaches the user's device only through the connect
// code. A Session owns one verification attempt end to end: establishment
// (seal and POST), connect-code construction, and polling until a terminal
// status.
package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/worldid/worldid-go/pkg/signal"
)

// userAgent is sent on every bridge request.
const userAgent = "worldid-go/0.1.0"

// defaultHTTPTimeout bounds a single bridge round trip. The protocol itself
// has no timeout; long waits are a caller-level policy decision.
const defaultHTTPTimeout = 30 * time.Second

// Request describes the verification being asked of the user, plus the
// collaborators a session is built from. The zero value of every optional
// field selects the production default.
type Request struct {
	// AppID is the validated app identifier from the Developer Portal.
	AppID AppID

	// Action is the action identifier the proof is scoped to.
	Action string

	// ActionDescription is an optional human-readable description shown to
	// the user in the World App.
	ActionDescription string

	// VerificationLevel is the minimum credential strength accepted.
	// Defaults to VerificationLevelOrb.
	VerificationLevel VerificationLevel

	// Signal is the application data cryptographically bound into the
	// proof request. Nil means no signal.
	Signal signal.Encoder

	// Bridge is the bridge to relay through. The zero value selects the
	// default hosted bridge.
	Bridge BridgeURL

	// HTTPClient performs the bridge round trips. Nil selects a client
	// with a 30 second per-request timeout.
	HTTPClient *http.Client

	// Random supplies key material. Nil selects the process-wide secure
	// source; tests may inject a deterministic reader.
	Random io.Reader
}

// Session is one verification attempt against the Wallet Bridge. It holds
// the symmetric key and the bridge-assigned request identifier, and is
// immutable after establishment apart from the terminal-status guard.
//
// A Session is exclusively owned by its caller for the lifetime of one
// attempt and must not be reused across attempts or shared between
// goroutines.
type Session struct {
	key       *SessionKey
	requestID uuid.UUID
	bridgeURL BridgeURL
	client    *http.Client
	terminal  bool
}

// createRequest is the plaintext of the establishment envelope.
type createRequest struct {
	AppID             AppID             `json:"app_id"`
	Action            string            `json:"action"`
	ActionDescription *string           `json:"action_description"`
	Signal            string            `json:"signal"`
	VerificationLevel VerificationLevel `json:"verification_level"`
	CredentialTypes   []CredentialType  `json:"credential_types"`
}

// createResponse is the bridge's answer to an establishment request.
type createResponse struct {
	RequestID uuid.UUID `json:"request_id"`
}

// pollResponse is the bridge's answer to a poll.
type pollResponse struct {
	Status   string    `json:"status"`
	Response *Envelope `json:"response"`
}

// bridgeProof is the decrypted success shape of a completed poll.
type bridgeProof struct {
	Proof          string         `json:"proof"`
	MerkleRoot     string         `json:"merkle_root"`
	NullifierHash  string         `json:"nullifier_hash"`
	CredentialType CredentialType `json:"credential_type"`
}

// NewSession establishes a session with the Wallet Bridge: it generates
// fresh key material, seals the verification request, POSTs it to the bridge
// and records the assigned request identifier. Any transport, encoding or
// encryption failure aborts establishment; no partial session exists on
// error.
func NewSession(ctx context.Context, req Request) (*Session, error) {
	bridgeURL := req.Bridge
	if bridgeURL.isZero() {
		bridgeURL = DefaultBridge()
	}

	client := req.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	level := req.VerificationLevel
	if level == "" {
		level = VerificationLevelOrb
	}

	key, nonce, err := GenerateKey(req.Random)
	if err != nil {
		return nil, err
	}

	var description *string
	if req.ActionDescription != "" {
		description = &req.ActionDescription
	}

	plaintext, err := json.Marshal(createRequest{
		AppID:             req.AppID,
		Action:            req.Action,
		ActionDescription: description,
		Signal:            signal.Hex(signal.Encode(req.Signal)),
		VerificationLevel: level,
		CredentialTypes:   level.CredentialTypes(),
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: encode create request: %w", err)
	}

	envelope, err := key.Seal(nonce, plaintext)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		bridgeURL.endpoint("/request"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bridge: build create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge: create request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bridge: create request failed: status %d: %s",
			resp.StatusCode, raw)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("bridge: decode create response: %w", err)
	}

	return &Session{
		key:       key,
		requestID: created.RequestID,
		bridgeURL: bridgeURL,
		client:    client,
	}, nil
}

// RequestID returns the opaque request identifier assigned by the bridge.
func (s *Session) RequestID() uuid.UUID {
	return s.requestID
}

// ConnectURL returns the URL the user's device must open to connect to this
// session, typically rendered as a scannable code. It is the only channel
// carrying the symmetric key to the user's device and must never be logged
// or transmitted elsewhere. The bridge URL is included only when it differs
// from the default.
func (s *Session) ConnectURL() string {
	connect := fmt.Sprintf("https://worldcoin.org/verify?t=wld&i=%s&k=%s",
		s.requestID,
		url.QueryEscape(base64.StdEncoding.EncodeToString(s.key.Bytes())),
	)
	if !s.bridgeURL.IsDefault() {
		connect += "&b=" + url.QueryEscape(s.bridgeURL.String())
	}
	return connect
}

// PollForStatus fetches and interprets the current status of the request.
// Call it repeatedly, sleeping between calls, until the returned status is
// terminal; polling after a terminal status returns ErrSessionTerminal, and
// a fresh session must be established for a new attempt.
//
// A non-success transport status from the bridge is a protocol-level
// outcome, not an error: it maps to StateFailed with ErrorConnectionFailed.
func (s *Session) PollForStatus(ctx context.Context) (Status, error) {
	if s.terminal {
		return Status{}, ErrSessionTerminal
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.bridgeURL.endpoint("/response/"+s.requestID.String()), nil)
	if err != nil {
		return Status{}, fmt.Errorf("bridge: build poll request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Status{}, fmt.Errorf("bridge: poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.terminal = true
		return Status{State: StateFailed, Error: ErrorConnectionFailed}, nil
	}

	var poll pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&poll); err != nil {
		return Status{}, fmt.Errorf("bridge: decode poll response: %w", err)
	}

	switch poll.Status {
	case "initialized":
		return Status{State: StateWaitingForConnection}, nil
	case "retrieved":
		return Status{State: StateAwaitingConfirmation}, nil
	case "completed":
		return s.completed(poll.Response)
	default:
		return Status{}, fmt.Errorf("%w: unknown status %q", ErrProtocolViolation, poll.Status)
	}
}

// completed decrypts and interprets the terminal response envelope. The
// plaintext is one of two shapes distinguished by which fields are present:
// the error shape is tried first (presence of error_code), then the proof
// shape.
func (s *Session) completed(envelope *Envelope) (Status, error) {
	if envelope == nil {
		return Status{}, fmt.Errorf("%w: completed status without response", ErrProtocolViolation)
	}

	plaintext, err := s.key.Open(*envelope)
	if err != nil {
		return Status{}, err
	}

	var rejection struct {
		ErrorCode *AppError `json:"error_code"`
	}
	if err := json.Unmarshal(plaintext, &rejection); err == nil && rejection.ErrorCode != nil {
		s.terminal = true
		return Status{State: StateFailed, Error: *rejection.ErrorCode}, nil
	}

	var proof bridgeProof
	if err := json.Unmarshal(plaintext, &proof); err != nil {
		return Status{}, fmt.Errorf("bridge: decode completed response: %w", err)
	}
	if proof.CredentialType == "" {
		return Status{}, fmt.Errorf("%w: completed response matches neither error nor proof shape", ErrProtocolViolation)
	}

	s.terminal = true
	return Status{
		State: StateConfirmed,
		Proof: &Proof{
			Proof:             proof.Proof,
			MerkleRoot:        proof.MerkleRoot,
			NullifierHash:     proof.NullifierHash,
			VerificationLevel: proof.CredentialType.VerificationLevel(),
		},
	}, nil
}
