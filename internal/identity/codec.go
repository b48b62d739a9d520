// Package identity mints and verifies opaque references to stored attempts.
//
// A reference seals the attempt serial, its creation instant in milliseconds
// and the attempt schema version with XChaCha20-Poly1305. The tool key the
// attempt belongs to is authenticated as additional data, so a reference
// minted under one key never opens under another.
package identity

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/grader/internal/domain"
	"golang.org/x/crypto/chacha20poly1305"
)

var ErrInvalidReference = errors.New("invalid attempt reference")

const payloadSize = 8 + 4 + 8

// Reference is what a verified token resolves to. The caller still has to
// match Verifier against the stored attempt.
type Reference struct {
	SerialID int64
	Verifier int64
}

type Codec struct {
	aead          cipher.AEAD
	schemaVersion uint32
	failureDelay  time.Duration
	sleep         func(time.Duration)
}

type Option func(*Codec)

// WithFailureDelay slows down every rejected Verify call.
func WithFailureDelay(d time.Duration) Option {
	return func(c *Codec) {
		c.failureDelay = d
	}
}

func WithSchemaVersion(v int) Option {
	return func(c *Codec) {
		c.schemaVersion = uint32(v)
	}
}

func NewCodec(key []byte, opts ...Option) (*Codec, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init reference cipher: %w", err)
	}

	c := &Codec{
		aead:          aead,
		schemaVersion: domain.AttemptSchemaVersion,
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint seals a reference to a stored attempt. The attempt must carry its
// serial id.
func (c *Codec) Mint(attempt domain.Attempt, binding domain.ToolKeyID) (string, error) {
	if attempt.SerialID <= 0 {
		return "", fmt.Errorf("mint reference: attempt has no serial id")
	}

	plain := make([]byte, payloadSize)
	binary.BigEndian.PutUint64(plain[0:8], uint64(attempt.SerialID))
	binary.BigEndian.PutUint32(plain[8:12], c.schemaVersion)
	binary.BigEndian.PutUint64(plain[12:20], uint64(attempt.CreatedMillis()))

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+payloadSize+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate reference nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plain, []byte(binding))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Verify(token string, binding domain.ToolKeyID) (Reference, error) {
	ref, err := c.open(token, binding)
	if err != nil {
		if c.failureDelay > 0 {
			c.sleep(c.failureDelay)
		}
		return Reference{}, err
	}
	return ref, nil
}

func (c *Codec) open(token string, binding domain.ToolKeyID) (Reference, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: decode: %v", ErrInvalidReference, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) != nonceSize+payloadSize+c.aead.Overhead() {
		return Reference{}, fmt.Errorf("%w: unexpected length %d", ErrInvalidReference, len(raw))
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(binding))
	if err != nil {
		return Reference{}, fmt.Errorf("%w: authentication failed", ErrInvalidReference)
	}

	if version := binary.BigEndian.Uint32(plain[8:12]); version != c.schemaVersion {
		return Reference{}, fmt.Errorf("%w: schema version %d, want %d", ErrInvalidReference, version, c.schemaVersion)
	}

	return Reference{
		SerialID: int64(binary.BigEndian.Uint64(plain[0:8])),
		Verifier: int64(binary.BigEndian.Uint64(plain[12:20])),
	}, nil
}
