package bridge

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Cryptographic constants for the bridge envelope.
const (
	// KeyLength is the length of the symmetric session key in bytes (AES-256).
	KeyLength = 32

	// NonceLength is the length of the GCM nonce in bytes.
	NonceLength = 12
)

// Envelope is the only shape ever sent over the wire in either direction for
// bridge request and response bodies. The bridge relays envelopes without
// being able to read them: only the session key holder and the user's device
// can open the payload.
type Envelope struct {
	// IV is the standard-base64 encoded GCM nonce.
	IV string `json:"iv"`
	// Payload is the standard-base64 encoded ciphertext with the
	// authentication tag appended.
	Payload string `json:"payload"`
}

// SessionKey holds the symmetric key material for one bridge session: the
// raw key bytes carried to the user's device in the connect code, and a
// ready-to-use AEAD handle for sealing and opening envelopes.
type SessionKey struct {
	raw  []byte
	aead cipher.AEAD
}

// NewSessionKey wraps 32 raw key bytes in a ready-to-use session key.
func NewSessionKey(raw []byte) (*SessionKey, error) {
	if len(raw) != KeyLength {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("bridge: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("bridge: create GCM: %w", err)
	}

	return &SessionKey{raw: raw, aead: aead}, nil
}

// GenerateKey produces a fresh session key and a fresh 12-byte nonce from
// random. A nil random falls back to the process-wide secure source; tests
// may inject a deterministic reader. Fails only if the source cannot provide
// bytes, which is fatal and not retryable locally.
func GenerateKey(random io.Reader) (*SessionKey, []byte, error) {
	if random == nil {
		random = rand.Reader
	}

	raw := make([]byte, KeyLength)
	if _, err := io.ReadFull(random, raw); err != nil {
		return nil, nil, fmt.Errorf("%w: generate key: %v", ErrRandomSource, err)
	}

	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: generate nonce: %v", ErrRandomSource, err)
	}

	key, err := NewSessionKey(raw)
	if err != nil {
		return nil, nil, err
	}
	return key, nonce, nil
}

// Bytes returns the raw key bytes. They are transmitted only to the user's
// device via the connect code; they must never be logged or sent elsewhere.
func (k *SessionKey) Bytes() []byte {
	return k.raw
}

// Seal authenticated-encrypts plaintext under nonce with AES-256-GCM and
// empty associated data, producing a wire-ready envelope.
func (k *SessionKey) Seal(nonce, plaintext []byte) (Envelope, error) {
	if len(nonce) != NonceLength {
		return Envelope{}, ErrInvalidNonce
	}

	sealed := k.aead.Seal(nil, nonce, plaintext, nil)

	return Envelope{
		IV:      base64.StdEncoding.EncodeToString(nonce),
		Payload: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Open authenticated-decrypts an envelope. It fails if either base64 field
// is malformed, the nonce is not the expected length, or the authentication
// tag does not verify; all three are surfaced to the caller and never
// silently swallowed.
func (k *SessionKey) Open(env Envelope) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("bridge: malformed envelope iv: %w", err)
	}
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonce
	}

	sealed, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("bridge: malformed envelope payload: %w", err)
	}

	plaintext, err := k.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
