package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
	"golang.org/x/crypto/chacha20poly1305"
)

const ReferenceKeyName = "reference.key"

// LoadOrCreateKey reads the reference key from store, generating and storing
// a fresh one on first use.
func LoadOrCreateKey(ctx context.Context, store ports.SecretStore, name string) ([]byte, error) {
	encoded, err := store.Get(ctx, name)
	switch {
	case err == nil:
		key, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if decodeErr != nil {
			return nil, fmt.Errorf("decode reference key: %w", decodeErr)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("reference key has %d bytes, want %d", len(key), chacha20poly1305.KeySize)
		}
		return key, nil
	case !errors.Is(err, domain.ErrSecretNotFound):
		return nil, fmt.Errorf("load reference key: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate reference key: %w", err)
	}
	if err := store.Put(ctx, name, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("store reference key: %w", err)
	}
	return key, nil
}
