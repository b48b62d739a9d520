package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nuid"

	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
)

// Store keeps launch sessions in process memory. Sessions older than ttl are
// treated as missing and dropped on access.
type Store struct {
	ttl   time.Duration
	clock ports.Clock

	mu       sync.RWMutex
	sessions map[domain.SessionID]domain.LaunchContext
}

var _ ports.LaunchSessions = (*Store)(nil)

func NewStore(ttl time.Duration, clock ports.Clock) *Store {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Store{
		ttl:      ttl,
		clock:    clock,
		sessions: map[domain.SessionID]domain.LaunchContext{},
	}
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (domain.LaunchContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.LaunchContext{}, err
	}

	s.mu.RLock()
	launch, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return domain.LaunchContext{}, fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}

	if s.expired(launch) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return domain.LaunchContext{}, fmt.Errorf("session %q expired: %w", id, domain.ErrSessionNotFound)
	}

	launch.CustomArgs = append([]string(nil), launch.CustomArgs...)
	return launch, nil
}

// Put stores launch, assigning a session id and a launch id when missing.
func (s *Store) Put(ctx context.Context, launch domain.LaunchContext) error {
	_, err := s.Open(ctx, launch)
	return err
}

// Open behaves like Put and returns the stored session.
func (s *Store) Open(ctx context.Context, launch domain.LaunchContext) (domain.LaunchContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.LaunchContext{}, err
	}
	if launch.ToolKeyID == "" || launch.ResourceUser.ID == "" {
		return domain.LaunchContext{}, errors.New("launch requires a tool key and a resource user")
	}

	if launch.SessionID == "" {
		launch.SessionID = domain.SessionID(nuid.Next())
	}
	if launch.LaunchID == "" {
		launch.LaunchID = nuid.Next()
	}
	if launch.CreatedAt.IsZero() {
		launch.CreatedAt = s.clock.Now()
	}
	launch.CustomArgs = append([]string(nil), launch.CustomArgs...)

	s.mu.Lock()
	s.sessions[launch.SessionID] = launch
	s.mu.Unlock()

	return launch, nil
}

func (s *Store) Delete(ctx context.Context, id domain.SessionID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) expired(launch domain.LaunchContext) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.clock.Now().Sub(launch.CreatedAt) > s.ttl
}
