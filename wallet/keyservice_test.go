package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_HTTPKeyService_PublicKey(t *testing.T) {
	c := require.New(t)

	key := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	pub := key.Public().(ed25519.PublicKey)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Equal("/v1/keys/public", r.URL.Path)

		var req publicKeyRequest
		c.NoError(json.NewDecoder(r.Body).Decode(&req))
		path, err := base64.StdEncoding.DecodeString(req.DerivationPath)
		c.NoError(err)
		c.Equal([]byte("alice"), path)

		_ = json.NewEncoder(w).Encode(publicKeyResponse{
			PublicKey: base64.StdEncoding.EncodeToString(pub),
		})
	}))
	t.Cleanup(server.Close)

	ks := NewHTTPKeyService(server.URL)
	got, err := ks.PublicKey(context.Background(), []byte("alice"))
	c.NoError(err)
	c.Equal(pub, got)
}

func Test_HTTPKeyService_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		expectedErr error
	}{
		{
			name: "backend outage is retryable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			expectedErr: ErrKeyServiceUnavailable,
		},
		{
			name: "malformed body is fatal",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			expectedErr: ErrKeyDerivationFailed,
		},
		{
			name: "non-base64 key material is fatal",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(encryptedKeyResponse{EncryptedKey: "%%%"})
			},
			expectedErr: ErrKeyDerivationFailed,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)

			server := httptest.NewServer(test.handler)
			t.Cleanup(server.Close)

			ks := NewHTTPKeyService(server.URL)
			_, err := ks.EncryptedKey(context.Background(), []byte("alice"), [32]byte{})
			c.ErrorIs(err, test.expectedErr)
		})
	}
}
