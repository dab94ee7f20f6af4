// Package wallet derives per-principal Solana keypairs from a threshold key
// service and drives transaction signing and submission.
//
// The key service never releases key material in the clear: the caller sends
// a fresh X25519 transport public key, receives the derived seed sealed to
// that key, and decrypts it locally. Seeds and private keys are derived per
// call and never cached.
package wallet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrKeyServiceUnavailable marks a transient key service failure. The
	// caller may retry with a fresh transport key.
	ErrKeyServiceUnavailable = errors.New("key service unavailable")

	// ErrKeyDerivationFailed marks a response that could not be decrypted or
	// decoded under the transport key it was requested with. Retrying with
	// the same transport key cannot succeed.
	ErrKeyDerivationFailed = errors.New("key derivation failed")
)

// KeyService is the threshold key derivation backend.
type KeyService interface {
	// EncryptedKey returns the 32-byte seed for the derivation path, sealed
	// to the transport public key.
	EncryptedKey(ctx context.Context, derivationPath []byte, transportPublicKey [32]byte) ([]byte, error)

	// PublicKey returns the ed25519 public key for the derivation path.
	PublicKey(ctx context.Context, derivationPath []byte) (ed25519.PublicKey, error)
}

// HTTPKeyService talks to a key service over HTTP.
type HTTPKeyService struct {
	baseURL string
	client  *http.Client
}

var _ KeyService = &HTTPKeyService{}

const keyServiceTimeout = 10 * time.Second

func NewHTTPKeyService(baseURL string) *HTTPKeyService {
	return &HTTPKeyService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: keyServiceTimeout},
	}
}

type encryptedKeyRequest struct {
	DerivationPath     string `json:"derivation_path"`
	TransportPublicKey string `json:"transport_public_key"`
}

type encryptedKeyResponse struct {
	EncryptedKey string `json:"encrypted_key"`
}

func (s *HTTPKeyService) EncryptedKey(ctx context.Context, derivationPath []byte, transportPublicKey [32]byte) ([]byte, error) {
	req := encryptedKeyRequest{
		DerivationPath:     base64.StdEncoding.EncodeToString(derivationPath),
		TransportPublicKey: base64.StdEncoding.EncodeToString(transportPublicKey[:]),
	}
	var resp encryptedKeyResponse
	if err := s.post(ctx, "/v1/keys/encrypted", req, &resp); err != nil {
		return nil, err
	}
	sealed, err := base64.StdEncoding.DecodeString(resp.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed encrypted key: %v", ErrKeyDerivationFailed, err)
	}
	return sealed, nil
}

type publicKeyRequest struct {
	DerivationPath string `json:"derivation_path"`
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

func (s *HTTPKeyService) PublicKey(ctx context.Context, derivationPath []byte) (ed25519.PublicKey, error) {
	req := publicKeyRequest{
		DerivationPath: base64.StdEncoding.EncodeToString(derivationPath),
	}
	var resp publicKeyResponse
	if err := s.post(ctx, "/v1/keys/public", req, &resp); err != nil {
		return nil, err
	}
	pub, err := base64.StdEncoding.DecodeString(resp.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: malformed public key", ErrKeyDerivationFailed)
	}
	return ed25519.PublicKey(pub), nil
}

func (s *HTTPKeyService) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: key service returned HTTP %d", ErrKeyServiceUnavailable, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyServiceUnavailable, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed key service response: %v", ErrKeyDerivationFailed, err)
	}
	return nil
}
