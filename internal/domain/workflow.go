package domain

import (
	"fmt"
	"strings"
	"time"
)

var jobTransitions = map[string][]string{
	JobStatusOpen:       {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress: {JobStatusCompleted, JobStatusCancelled},
}

// CheckJobTransition allows the forward job lifecycle and same-status no-ops.
func CheckJobTransition(from, to string) error {
	if from == to {
		return nil
	}
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("job status %s cannot change to %s: %w", from, to, ErrConflict)
}

// JobActive reports whether the job can still move between departments.
func JobActive(status string) bool {
	return status == JobStatusOpen || status == JobStatusInProgress
}

// DecideHandoff settles a pending handoff. Rejections need a note.
func DecideHandoff(handoff *Handoff, accept bool, decidedBy, note string, at time.Time) error {
	if handoff.Status != HandoffPending {
		return fmt.Errorf("handoff already %s: %w", handoff.Status, ErrConflict)
	}
	if !accept && strings.TrimSpace(note) == "" {
		return NewFieldError("note", "is required when rejecting a handoff")
	}

	decided := at.UTC()
	handoff.Status = HandoffRejected
	if accept {
		handoff.Status = HandoffAccepted
	}
	handoff.DecidedBy = decidedBy
	handoff.DecisionNote = strings.TrimSpace(note)
	handoff.DecidedAt = &decided
	handoff.UpdatedAt = decided
	return nil
}
