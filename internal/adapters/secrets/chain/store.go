package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/bnema/grader/internal/adapters/secrets/env"
	filestore "github.com/bnema/grader/internal/adapters/secrets/file"
	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
)

// Store reads from an override backend first and falls back to a writable
// backend when the override has no value. Writes only reach the writable
// backend.
type Store struct {
	override ports.SecretStore
	writable ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilOverrideStore = errors.New("override secret store is nil")
	errNilWritableStore = errors.New("writable secret store is nil")
)

func NewStore(override ports.SecretStore, writable ports.SecretStore) (*Store, error) {
	if override == nil {
		return nil, errNilOverrideStore
	}
	if writable == nil {
		return nil, errNilWritableStore
	}

	return &Store{override: override, writable: writable}, nil
}

// NewEnvFirstWithFileFallback lets operators inject keys through GRADER_SECRET_*
// variables while generated keys persist under keyDir.
func NewEnvFirstWithFileFallback(keyDir string) (*Store, error) {
	return NewStore(envstore.NewStore(envstore.DefaultPrefix), filestore.NewStore(keyDir))
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.override.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, domain.ErrSecretNotFound) {
		return "", fmt.Errorf("override backend get: %w", err)
	}

	return s.writable.Get(ctx, key)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	return s.writable.Put(ctx, key, value)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.writable.Delete(ctx, key)
}
