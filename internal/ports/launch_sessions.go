package ports

import (
	"context"

	"github.com/bnema/grader/internal/domain"
)

type LaunchSessions interface {
	Get(ctx context.Context, id domain.SessionID) (domain.LaunchContext, error)
	Put(ctx context.Context, launch domain.LaunchContext) error
	Delete(ctx context.Context, id domain.SessionID) error
}
