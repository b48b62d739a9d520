package ports

import (
	"context"

	"github.com/bnema/grader/internal/domain"
)

type OutcomeNotifier interface {
	WriteOutcome(ctx context.Context, user domain.ResourceUser, key domain.ToolKeyID, score int) error
}
