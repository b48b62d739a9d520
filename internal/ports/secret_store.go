package ports

import "context"

// SecretStore holds key material such as the attempt reference key and the
// admin token.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
