package proref

import (
	"fmt"
	"strings"

	prerrors "github.com/randalmurphal/proref/errors"
	"github.com/randalmurphal/proref/ticket"
)

// StageError is a failure of one ticket, or of a whole batch when TicketID
// is empty, in one stage.
type StageError struct {
	TicketID string          // Empty for batch-level failures
	Stage    ticket.StageKey // e.g. "embed" or "generate:questions"
	Kind     prerrors.Kind
	Err      error
}

func (e *StageError) Error() string {
	if e.TicketID == "" {
		return fmt.Sprintf("%s failed (%s): %v", stageLabel(e.Stage), e.Kind, e.Err)
	}
	return fmt.Sprintf("ticket %s: %s failed (%s): %v", e.TicketID, stageLabel(e.Stage), e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(id string, stage ticket.StageKey, err error) *StageError {
	return &StageError{TicketID: id, Stage: stage, Kind: prerrors.Classify(err), Err: err}
}

// stageLabel turns "generate:test_cases" into "generate test cases".
func stageLabel(k ticket.StageKey) string {
	return strings.NewReplacer(":", " ", "_", " ").Replace(string(k))
}
