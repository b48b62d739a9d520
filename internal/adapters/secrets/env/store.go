package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
)

const DefaultPrefix = "GRADER_SECRET_"

var ErrReadOnly = errors.New("environment secrets are read-only")

// Store reads secrets from environment variables. The key
// "tools/c-intro/reference.key" is looked up as
// GRADER_SECRET_TOOLS_C_INTRO_REFERENCE_KEY.
type Store struct {
	prefix string
	lookup func(string) (string, bool)
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{prefix: prefix, lookup: os.LookupEnv}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := s.VariableName(key)
	value, ok := s.lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("env secret %s: %w", name, domain.ErrSecretNotFound)
	}
	return strings.TrimSpace(value), nil
}

func (s *Store) Put(context.Context, string, string) error {
	return ErrReadOnly
}

func (s *Store) Delete(context.Context, string) error {
	return ErrReadOnly
}

func (s *Store) VariableName(key string) string {
	var b strings.Builder
	b.WriteString(s.prefix)
	for _, r := range strings.ToUpper(strings.TrimSpace(key)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
