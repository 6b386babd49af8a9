package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sieve/pkg/adapters/memory"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/persistence/middleware"
	"github.com/aretw0/sieve/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretState(id string) *domain.State {
	s := domain.NewState(id, "/data", "openai/gpt-4o")
	s.Status = domain.StatusPaused
	s.CurrentNodeID = domain.NodeGatekeeper
	s.RawRules = domain.Ptr("priority,rule\nHigh,confidential oncology pipeline\n")
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	original := secretState("enc")
	require.NoError(t, secure.Save(ctx, "enc", original))

	stored, err := underlying.Load(ctx, "enc")
	require.NoError(t, err)
	assert.Nil(t, stored.RawRules, "sensitive fields stay out of the clear record")
	assert.NotEmpty(t, stored.Envelope)
	assert.NotContains(t, stored.Envelope, "oncology")
	assert.Equal(t, domain.StatusPaused, stored.Status)
	assert.Equal(t, domain.NodeGatekeeper, stored.CurrentNodeID)

	loaded, err := secure.Load(ctx, "enc")
	require.NoError(t, err)
	assert.Equal(t, domain.Text(original.RawRules), domain.Text(loaded.RawRules))
	assert.Empty(t, loaded.Envelope)
}

func TestEncryptionMiddleware_StoreContract(t *testing.T) {
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunStateStoreContract(t, secure)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureOld.Save(ctx, "rot", secretState("rot")))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.Load(ctx, "rot")
	require.NoError(t, err, "fallback key opens old records")

	loaded.Instructions = "resealed"
	require.NoError(t, secureNew.Save(ctx, "rot", loaded))

	_, err = secureOld.Load(ctx, "rot")
	assert.Error(t, err, "records written with the new key are closed to the old one")
}

func TestEncryptionMiddleware_RefusesPlainRecords(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), "plain", secretState("plain")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(context.Background(), "plain")
	assert.ErrorIs(t, err, middleware.ErrNoEnvelope)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = middleware.ParseKey(" " + hex.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("c2hvcnQ=")
	assert.Error(t, err)
}
