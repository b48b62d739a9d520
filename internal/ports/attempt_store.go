package ports

import (
	"context"
	"time"

	"github.com/bnema/grader/internal/domain"
)

// AttemptFilter narrows CountAttempts. An empty FileName counts every file.
type AttemptFilter struct {
	UserID    string
	ToolKeyID domain.ToolKeyID
	FileName  string
}

type AttemptStore interface {
	// Create assigns a serial id and returns the stored attempt.
	Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	GetBySerial(ctx context.Context, serial int64) (domain.Attempt, error)
	// Find resolves the attempt a resource user made at a given instant.
	Find(ctx context.Context, resourceUser domain.ResourceUserID, createdAt time.Time) (domain.Attempt, error)
	CountAttempts(ctx context.Context, filter AttemptFilter) (int, error)
	ListByToolKey(ctx context.Context, toolKey domain.ToolKeyID) ([]domain.Attempt, error)
}
