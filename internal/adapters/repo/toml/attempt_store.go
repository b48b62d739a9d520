package toml

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
	"github.com/spf13/viper"
)

const (
	attemptsPathKey  = "storage.attempts_path"
	attemptsFileName = "attempts.toml"
	attemptsWhat     = "attempts"
)

// AttemptStore keeps attempt records in a single TOML file. It is meant for
// single-node deployments and tests.
type AttemptStore struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.AttemptStore = (*AttemptStore)(nil)

func NewAttemptStore(cfg *viper.Viper) (*AttemptStore, error) {
	path, err := resolvePath(cfg, attemptsPathKey, attemptsFileName)
	if err != nil {
		return nil, err
	}
	return &AttemptStore{path: path, mu: lockForPath(path)}, nil
}

func (s *AttemptStore) Path() string {
	return s.path
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attempt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Attempt{}, err
	}

	attempt.SerialID = file.NextSerial
	file.NextSerial++
	file.Attempts = append(file.Attempts, toAttemptSchema(attempt))

	if err := ctx.Err(); err != nil {
		return domain.Attempt{}, err
	}

	if err := writeFile(s.path, attemptsWhat, file); err != nil {
		return domain.Attempt{}, err
	}

	return attempt, nil
}

func (s *AttemptStore) GetBySerial(ctx context.Context, serial int64) (domain.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attempt{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Attempt{}, err
	}

	for _, entry := range file.Attempts {
		if entry.Serial == serial {
			return fromAttemptSchema(entry), nil
		}
	}

	return domain.Attempt{}, domain.ErrAttemptNotFound
}

func (s *AttemptStore) Find(ctx context.Context, resourceUser domain.ResourceUserID, createdAt time.Time) (domain.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attempt{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Attempt{}, err
	}

	for _, entry := range file.Attempts {
		if entry.ResourceUser.ID != string(resourceUser) {
			continue
		}
		if parseTime(entry.CreatedAt).Equal(createdAt) {
			return fromAttemptSchema(entry), nil
		}
	}

	return domain.Attempt{}, domain.ErrAttemptNotFound
}

func (s *AttemptStore) CountAttempts(ctx context.Context, filter ports.AttemptFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range file.Attempts {
		if entry.ResourceUser.UserID != filter.UserID || entry.ResourceUser.ToolKeyID != string(filter.ToolKeyID) {
			continue
		}
		if filter.FileName != "" && entry.FileName != filter.FileName {
			continue
		}
		count++
	}

	return count, nil
}

func (s *AttemptStore) ListByToolKey(ctx context.Context, toolKey domain.ToolKeyID) ([]domain.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.Attempt, 0, len(file.Attempts))
	for _, entry := range file.Attempts {
		if toolKey != "" && entry.ResourceUser.ToolKeyID != string(toolKey) {
			continue
		}
		attempts = append(attempts, fromAttemptSchema(entry))
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].SerialID < attempts[j].SerialID
	})

	return attempts, nil
}

func (s *AttemptStore) readSchema() (attemptsFileSchema, error) {
	var file attemptsFileSchema
	if err := readFile(s.path, attemptsWhat, &file); err != nil {
		return attemptsFileSchema{}, err
	}
	if err := file.validateVersion(); err != nil {
		return attemptsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func toAttemptSchema(attempt domain.Attempt) attemptSchema {
	encoded := attemptSchema{
		Serial:       attempt.SerialID,
		CreatedAt:    formatTime(attempt.CreatedAt),
		FileName:     attempt.FileName,
		FileSaved:    attempt.FileSaved,
		OutputSaved:  attempt.OutputSaved,
		Score:        attempt.Score,
		ErrorCode:    attempt.ErrorCode,
		ResourceUser: toResourceUserSchema(attempt.ResourceUser),
	}
	if attempt.IsReassessment() {
		original := toResourceUserSchema(attempt.OriginalResourceUser)
		encoded.Original = &original
	}
	return encoded
}

func fromAttemptSchema(entry attemptSchema) domain.Attempt {
	user := fromResourceUserSchema(entry.ResourceUser)
	original := user
	if entry.Original != nil {
		original = fromResourceUserSchema(*entry.Original)
	}

	return domain.Attempt{
		SerialID:             entry.Serial,
		ResourceUser:         user,
		OriginalResourceUser: original,
		CreatedAt:            parseTime(entry.CreatedAt),
		FileName:             entry.FileName,
		FileSaved:            entry.FileSaved,
		OutputSaved:          entry.OutputSaved,
		Score:                entry.Score,
		ErrorCode:            entry.ErrorCode,
	}
}

func toResourceUserSchema(user domain.ResourceUser) resourceUserSchema {
	return resourceUserSchema{
		ID:             string(user.ID),
		UserID:         user.UserID,
		ToolName:       user.ToolName,
		ToolKeyID:      string(user.ToolKeyID),
		ResourceLinkID: user.ResourceLinkID,
		ContextID:      user.ContextID,
	}
}

func fromResourceUserSchema(user resourceUserSchema) domain.ResourceUser {
	return domain.ResourceUser{
		ID:             domain.ResourceUserID(user.ID),
		UserID:         user.UserID,
		ToolName:       user.ToolName,
		ToolKeyID:      domain.ToolKeyID(user.ToolKeyID),
		ResourceLinkID: user.ResourceLinkID,
		ContextID:      user.ContextID,
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
