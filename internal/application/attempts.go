package application

import (
	"context"
	"fmt"

	"github.com/bnema/grader/internal/domain"
)

// ResolveReference opens a secured reference minted under keyID and returns
// the stored attempt it names. The stored creation instant and tool key must
// match what the reference was sealed with.
func (s *AssessmentService) ResolveReference(ctx context.Context, token string, keyID domain.ToolKeyID) (domain.Attempt, error) {
	ref, err := s.codec.Verify(token, keyID)
	if err != nil {
		return domain.Attempt{}, err
	}

	attempt, err := s.attempts.GetBySerial(ctx, ref.SerialID)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt %d: %w", ref.SerialID, err)
	}
	if attempt.CreatedMillis() != ref.Verifier {
		return domain.Attempt{}, fmt.Errorf("%w: attempt %d verifier", domain.ErrReferenceBinding, ref.SerialID)
	}
	if attempt.ResourceUser.ToolKeyID != keyID {
		return domain.Attempt{}, fmt.Errorf("%w: attempt %d tool key", domain.ErrReferenceBinding, ref.SerialID)
	}
	return attempt, nil
}

// MintReference seals a reference to the stored attempt serial.
func (s *AssessmentService) MintReference(ctx context.Context, serial int64) (string, domain.Attempt, error) {
	attempt, err := s.attempts.GetBySerial(ctx, serial)
	if err != nil {
		return "", domain.Attempt{}, fmt.Errorf("load attempt %d: %w", serial, err)
	}
	token, err := s.codec.Mint(attempt, attempt.ResourceUser.ToolKeyID)
	if err != nil {
		return "", domain.Attempt{}, err
	}
	return token, attempt, nil
}

// ListAttempts returns the attempts recorded under keyID, or every attempt
// when keyID is empty, each with a fresh reference.
func (s *AssessmentService) ListAttempts(ctx context.Context, keyID domain.ToolKeyID) ([]AttemptView, error) {
	attempts, err := s.attempts.ListByToolKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	views := make([]AttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		view := AttemptView{Attempt: attempt, Receipt: s.receipt(attempt.SerialID)}
		if reference, err := s.codec.Mint(attempt, attempt.ResourceUser.ToolKeyID); err == nil {
			view.Reference = reference
		}
		if !attempt.Failed() {
			view.Score = domain.DisplayScore(attempt.Score)
		}
		views = append(views, view)
	}
	return views, nil
}
