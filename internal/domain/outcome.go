package domain

import "fmt"

// Corrector result codes. Values 0 to MaxScore are scores; everything above
// is a failure classification.
const (
	MaxScore = 100

	CodeGenericFailure     = 101
	CodeWriteOutcomeFailed = 102
	CodeCorrectorError     = 111
	CodeRunnerError        = 112
	CodeDegradedDeferred   = 113
	CodeTimeout            = 137
)

// Error codes stored on successful attempts.
const (
	ErrorCodeNoOutcome   = 0
	ErrorCodeWithOutcome = 1
)

type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeOKNoOutcome
	OutcomeOKWithOutcome
	OutcomeFatalRunner
	OutcomeFatalCorrector
	OutcomeTimeout
	OutcomeConcurrentConflict
	OutcomeDegradedDeferred
	OutcomeGenericFailure
	OutcomeWriteOutcomeFailed
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOKNoOutcome:
		return "ok_no_outcome"
	case OutcomeOKWithOutcome:
		return "ok_with_outcome"
	case OutcomeFatalRunner:
		return "fatal_runner"
	case OutcomeFatalCorrector:
		return "fatal_corrector"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeConcurrentConflict:
		return "concurrent_conflict"
	case OutcomeDegradedDeferred:
		return "degraded_deferred"
	case OutcomeGenericFailure:
		return "generic_failure"
	case OutcomeWriteOutcomeFailed:
		return "write_outcome_failed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Graded reports whether the corrector produced a usable score.
func (k OutcomeKind) Graded() bool {
	return k == OutcomeOKNoOutcome || k == OutcomeOKWithOutcome || k == OutcomeWriteOutcomeFailed
}

// FailureKind maps a failure code to its classification. Scores and unknown
// codes are reported as generic failures.
func FailureKind(code int) OutcomeKind {
	switch code {
	case CodeRunnerError:
		return OutcomeFatalRunner
	case CodeCorrectorError:
		return OutcomeFatalCorrector
	case CodeTimeout:
		return OutcomeTimeout
	case CodeDegradedDeferred:
		return OutcomeDegradedDeferred
	case CodeWriteOutcomeFailed:
		return OutcomeWriteOutcomeFailed
	default:
		return OutcomeGenericFailure
	}
}

func IsScore(code int) bool {
	return code >= 0 && code <= MaxScore
}

// DisplayScore renders a corrector score on the 0-10 scale shown to users.
func DisplayScore(code int) string {
	return fmt.Sprintf("%.1f", float64(code)*0.1)
}

// OutcomeFraction renders a score as the 0-1 fraction reported upstream.
func OutcomeFraction(code int) string {
	return fmt.Sprintf("%.2f", float64(code)*0.01)
}
