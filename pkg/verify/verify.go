// Package verify checks completed World ID proofs against the Developer
// Portal verification API.
//
// Verification is stateless and independent of any bridge session: given a
// proof, the app id, the action and the optional signal, it re-derives the
// signal hash and asks the verification endpoint to validate the proof
// server-side. No retries are performed internally.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/worldid/worldid-go/pkg/bridge"
	"github.com/worldid/worldid-go/pkg/signal"
)

// DefaultBaseURL is the production Developer Portal API.
const DefaultBaseURL = "https://developer.worldcoin.org"

const userAgent = "worldid-go/0.1.0"

// Client verifies proofs against a Developer Portal instance.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a verification client. An empty baseURL selects the
// production Developer Portal.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Request carries everything needed to verify a proof server-side. Signal
// must be the same value that was bound into the proof request; nil means
// the proof was requested without a signal.
type Request struct {
	AppID  bridge.AppID
	Action string
	Proof  bridge.Proof
	Signal signal.Encoder
}

// verificationRequest is the wire shape of the verification body.
type verificationRequest struct {
	Action            string                   `json:"action"`
	Proof             string                   `json:"proof"`
	MerkleRoot        string                   `json:"merkle_root"`
	NullifierHash     string                   `json:"nullifier_hash"`
	VerificationLevel bridge.VerificationLevel `json:"verification_level"`
	SignalHash        string                   `json:"signal_hash,omitempty"`
}

// VerificationError is a structured rejection from the verification
// endpoint (HTTP 400): a machine-readable code, human-readable detail, and
// optionally the name of the offending attribute.
type VerificationError struct {
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	Attribute string `json:"attribute,omitempty"`
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify: verification failed: %s: %s", e.Code, e.Detail)
}

// UnexpectedResponseError is returned for any response outside the defined
// 200/400 mappings. It carries the raw response for caller inspection.
type UnexpectedResponseError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("verify: unexpected response: status %d", e.StatusCode)
}

// VerifyProof verifies a proof with the Developer Portal. A nil return means
// the proof is valid. A *VerificationError means the portal rejected the
// proof; any other error means the call itself failed.
func (c *Client) VerifyProof(ctx context.Context, req Request) error {
	wire := verificationRequest{
		Action:            req.Action,
		Proof:             req.Proof.Proof,
		MerkleRoot:        req.Proof.MerkleRoot,
		NullifierHash:     req.Proof.NullifierHash,
		VerificationLevel: req.Proof.VerificationLevel,
	}

	// An empty signal omits the field entirely; a non-empty one binds the
	// same field hash the proof request carried.
	if req.Signal != nil {
		if encoded := req.Signal.SignalBytes(); len(encoded) > 0 {
			wire.SignalHash = signal.Hex(signal.HashToField(encoded))
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("verify: encode request: %w", err)
	}

	endpoint := c.baseURL + "/api/v2/verify/" + req.AppID.String()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("verify: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("verify: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		var rejection VerificationError
		if err := json.NewDecoder(resp.Body).Decode(&rejection); err != nil {
			return fmt.Errorf("verify: decode rejection: %w", err)
		}
		return &rejection
	default:
		raw, _ := io.ReadAll(resp.Body)
		return &UnexpectedResponseError{StatusCode: resp.StatusCode, Body: raw}
	}
}
