package ports

import (
	"context"

	"github.com/bnema/grader/internal/domain"
)

type ToolCatalog interface {
	// ToolForKey returns the immutable snapshot of the tool a key is bound to.
	ToolForKey(ctx context.Context, key domain.ToolKeyID) (domain.Tool, domain.ToolKey, error)
	List(ctx context.Context) ([]domain.Tool, error)
	IncrementCounter(ctx context.Context, toolName string) (int64, error)
	Invalidate(toolName string)
}
