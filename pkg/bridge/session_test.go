package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldid/worldid-go/pkg/signal"
)

// testKeyMaterial returns a fixed random source: 32 key bytes followed by a
// 12-byte nonce, so the test bridge can open what the session seals.
func testKeyMaterial() []byte {
	material := make([]byte, KeyLength+NonceLength)
	for i := range material {
		material[i] = byte(i + 1)
	}
	return material
}

func testSessionKey(t *testing.T) *SessionKey {
	t.Helper()
	key, err := NewSessionKey(testKeyMaterial()[:KeyLength])
	require.NoError(t, err)
	return key
}

// openCreateRequest decodes and decrypts the establishment envelope the
// session POSTed to the bridge.
func openCreateRequest(t *testing.T, key *SessionKey, r *http.Request) createRequest {
	t.Helper()

	var envelope Envelope
	require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))

	plaintext, err := key.Open(envelope)
	require.NoError(t, err)

	var created createRequest
	require.NoError(t, json.Unmarshal(plaintext, &created))
	return created
}

// sealResponse encrypts a poll response body under the session key with a
// fresh nonce, the way the user's device does.
func sealResponse(t *testing.T, key *SessionKey, plaintext string) *Envelope {
	t.Helper()

	nonce := bytes.Repeat([]byte{0xAB}, NonceLength)
	envelope, err := key.Seal(nonce, []byte(plaintext))
	require.NoError(t, err)
	return &envelope
}

func testBridge(t *testing.T, handler http.HandlerFunc) (*httptest.Server, BridgeURL) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	bridgeURL, err := ParseBridgeURL(server.URL)
	require.NoError(t, err)
	return server, bridgeURL
}

func TestNewSession_Establish(t *testing.T) {
	requestID := uuid.New()
	key := testSessionKey(t)

	var created createRequest
	_, bridgeURL := testBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/request", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		created = openCreateRequest(t, key, r)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"request_id": requestID.String()})
	})

	session, err := NewSession(context.Background(), Request{
		AppID:             UncheckedAppID("app_123"),
		Action:            "vote",
		VerificationLevel: VerificationLevelOrb,
		Signal:            signal.String("test"),
		Bridge:            bridgeURL,
		Random:            bytes.NewReader(testKeyMaterial()),
	})
	require.NoError(t, err)
	assert.Equal(t, requestID, session.RequestID())

	// The plaintext the bridge relayed but could not read.
	assert.Equal(t, AppID("app_123"), created.AppID)
	assert.Equal(t, "vote", created.Action)
	assert.Nil(t, created.ActionDescription, "absent description must serialize as null")
	assert.Equal(t,
		"0x009c22ff5f21f0b81b113e63f7db6da94fedef11b2119b4088b89664fb9a3cb6",
		created.Signal,
	)
	assert.Equal(t, VerificationLevelOrb, created.VerificationLevel)
	assert.Equal(t, []CredentialType{CredentialTypeOrb}, created.CredentialTypes)
}

func TestNewSession_DeviceLevelAndDescription(t *testing.T) {
	key := testSessionKey(t)

	var created createRequest
	_, bridgeURL := testBridge(t, func(w http.ResponseWriter, r *http.Request) {
		created = openCreateRequest(t, key, r)
		json.NewEncoder(w).Encode(map[string]string{"request_id": uuid.NewString()})
	})

	_, err := NewSession(context.Background(), Request{
		AppID:             UncheckedAppID("app_123"),
		Action:            "vote",
		ActionDescription: "Cast your vote",
		VerificationLevel: VerificationLevelDevice,
		Bridge:            bridgeURL,
		Random:            bytes.NewReader(testKeyMaterial()),
	})
	require.NoError(t, err)

	require.NotNil(t, created.ActionDescription)
	assert.Equal(t, "Cast your vote", *created.ActionDescription)
	assert.Equal(t, VerificationLevelDevice, created.VerificationLevel)
	assert.Equal(t,
		[]CredentialType{CredentialTypeOrb, CredentialTypeDevice},
		created.CredentialTypes,
	)

	// Nil signal: the empty byte string's field hash.
	assert.Equal(t,
		"0x00c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a4",
		created.Signal,
	)
}

func TestNewSession_BridgeFailure(t *testing.T) {
	_, bridgeURL := testBridge(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	_, err := NewSession(context.Background(), Request{
		AppID:  UncheckedAppID("app_123"),
		Action: "vote",
		Bridge: bridgeURL,
	})
	require.Error(t, err, "establishment must fail, no partial session exists")
}

func TestConnectURL_CustomBridge(t *testing.T) {
	requestID := uuid.New()
	_, bridgeURL := testBridge(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"request_id": requestID.String()})
	})

	session, err := NewSession(context.Background(), Request{
		AppID:  UncheckedAppID("app_123"),
		Action: "vote",
		Bridge: bridgeURL,
		Random: bytes.NewReader(testKeyMaterial()),
	})
	require.NoError(t, err)

	wantKey := url.QueryEscape(base64.StdEncoding.EncodeToString(testKeyMaterial()[:KeyLength]))
	connect := session.ConnectURL()

	assert.True(t, strings.HasPrefix(connect, "https://worldcoin.org/verify?t=wld"))
	assert.Contains(t, connect, "&i="+requestID.String())
	assert.Contains(t, connect, "&k="+wantKey)
	// Non-default bridge: the b parameter carries the exact escaped URL.
	assert.Contains(t, connect, "&b="+url.QueryEscape(bridgeURL.String()))

	parsed, err := url.Parse(connect)
	require.NoError(t, err)
	assert.Equal(t, bridgeURL.String(), parsed.Query().Get("b"))
}

func TestConnectURL_DefaultBridge(t *testing.T) {
	session := &Session{
		key:       testSessionKey(t),
		requestID: uuid.New(),
		bridgeURL: DefaultBridge(),
	}

	assert.NotContains(t, session.ConnectURL(), "&b=",
		"default bridge must omit the b parameter")
}

func pollSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()

	_, bridgeURL := testBridge(t, handler)
	return &Session{
		key:       testSessionKey(t),
		requestID: uuid.New(),
		bridgeURL: bridgeURL,
		client:    http.DefaultClient,
	}
}

func TestPollForStatus_NonTerminal(t *testing.T) {
	bridgeStatus := "initialized"
	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/response/"))
		json.NewEncoder(w).Encode(map[string]string{"status": bridgeStatus})
	})

	status, err := session.PollForStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateWaitingForConnection, status.State)
	assert.False(t, status.State.Terminal())

	// AwaitingConfirmation can hold across multiple polls.
	bridgeStatus = "retrieved"
	for i := 0; i < 3; i++ {
		status, err = session.PollForStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingConfirmation, status.State)
	}
}

func TestPollForStatus_CompletedProof(t *testing.T) {
	key := testSessionKey(t)
	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{
			Status: "completed",
			Response: sealResponse(t, key, `{
				"proof": "0x1234",
				"merkle_root": "0xabcd",
				"nullifier_hash": "0xef01",
				"credential_type": "device"
			}`),
		})
	})

	status, err := session.PollForStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateConfirmed, status.State)
	require.NotNil(t, status.Proof)

	assert.Equal(t, "0x1234", status.Proof.Proof)
	assert.Equal(t, "0xabcd", status.Proof.MerkleRoot)
	assert.Equal(t, "0xef01", status.Proof.NullifierHash)
	// CredentialType from the wire maps into the caller-facing level.
	assert.Equal(t, VerificationLevelDevice, status.Proof.VerificationLevel)

	// Polling after a terminal status is a defined error, not undefined
	// behaviour.
	_, err = session.PollForStatus(context.Background())
	assert.ErrorIs(t, err, ErrSessionTerminal)
}

func TestPollForStatus_CompletedError(t *testing.T) {
	key := testSessionKey(t)
	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{
			Status:   "completed",
			Response: sealResponse(t, key, `{"error_code":"verification_rejected"}`),
		})
	})

	status, err := session.PollForStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, ErrorVerificationRejected, status.Error)
	assert.Nil(t, status.Proof)

	_, err = session.PollForStatus(context.Background())
	assert.ErrorIs(t, err, ErrSessionTerminal)
}

func TestPollForStatus_BridgeUnavailable(t *testing.T) {
	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	// A non-success transport status is a protocol-level outcome, not an
	// error of the polling call.
	status, err := session.PollForStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, ErrorConnectionFailed, status.Error)
}

func TestPollForStatus_UnknownStatus(t *testing.T) {
	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "exploded"})
	})

	_, err := session.PollForStatus(context.Background())
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestPollForStatus_MissingCompletedPayload(t *testing.T) {
	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
	})

	_, err := session.PollForStatus(context.Background())
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestPollForStatus_UnrecognizedCompletedBody(t *testing.T) {
	key := testSessionKey(t)
	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{
			Status:   "completed",
			Response: sealResponse(t, key, `{}`),
		})
	})

	_, err := session.PollForStatus(context.Background())
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestPollForStatus_WrongKey(t *testing.T) {
	otherKey, _, err := GenerateKey(nil)
	require.NoError(t, err)

	session := pollSession(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{
			Status:   "completed",
			Response: sealResponse(t, otherKey, `{"error_code":"generic_error"}`),
		})
	})

	_, err = session.PollForStatus(context.Background())
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
