package application

import (
	"fmt"

	"github.com/bnema/grader/internal/domain"
)

const (
	msgToolDisabled       = "The tool is not accepting deliveries right now."
	msgCapacity           = "Too many deliveries are being graded. Try again in a moment."
	msgConcurrentConflict = "A delivery of yours is already being graded."
	msgBadRequest         = "The delivery request is malformed."
	msgWrongPassword      = "Wrong delivery password."
	msgNotPrivileged      = "Only instructors of tools with attempt management can reassess."
	msgInvalidReference   = "The attempt reference is not valid for this tool."
	msgMissingFile        = "The original delivery is no longer stored."
	msgMissingPart        = "No file was delivered."
	msgTooManyAttempts    = "You have reached the maximum number of attempts."
	msgInvalidFileName    = "The file name is not accepted by this tool."
	msgTooLarge           = "The file exceeds the upload limit of %d kB."
	msgIO                 = "The delivery could not be stored."
	msgDegraded           = "The tool is at capacity near its deadline. Your delivery was stored and will be graded later. Keep the identifier below."
	msgWriteOutcome       = "The score could not be sent to the learning platform."
)

func scoreMessage(score string, test bool) string {
	if test {
		return "(TEST) Score: " + score
	}
	return "Score: " + score
}

func failureMessage(kind domain.OutcomeKind, code int) string {
	switch kind {
	case domain.OutcomeFatalCorrector:
		return "The corrector failed. Contact the instructor."
	case domain.OutcomeFatalRunner:
		return "The corrector could not be started. Contact the instructor."
	case domain.OutcomeTimeout:
		return "The corrector ran out of time."
	default:
		return fmt.Sprintf("Unexpected corrector error %d.", code)
	}
}
