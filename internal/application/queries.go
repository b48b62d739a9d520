package application

import (
	"github.com/bnema/grader/internal/domain"
)

// AssessmentResult is what a delivery resolves to. Expected rejections are
// reported through Kind, not as errors.
type AssessmentResult struct {
	Kind    domain.OutcomeKind
	Code    int
	Attempt domain.Attempt
	// Score is the display score on the 0-10 scale, empty when ungraded.
	Score     string
	Test      bool
	Output    string
	Reference string
	Receipt   string
	// AttemptID is the plain-text identifier surfaced with deferred gradings.
	AttemptID string
	Message   string
	Err       error
}

type AttemptView struct {
	Attempt   domain.Attempt
	Reference string
	Receipt   string
	Score     string
}
