package suspension

import (
	"fmt"

	"github.com/google/uuid"
)

// Decision is the outcome the policy picks for a new suspension request.
type Decision int

const (
	DecisionSuspend Decision = iota
	DecisionSuspendWithWarning
	DecisionDelete
)

func (d Decision) String() string {
	switch d {
	case DecisionSuspend:
		return "suspend"
	case DecisionSuspendWithWarning:
		return "suspend_with_warning"
	case DecisionDelete:
		return "delete"
	}
	return "unknown"
}

// Policy holds the escalation thresholds, both counted in suspension records.
type Policy struct {
	WarningThreshold  int
	DeletionThreshold int
}

func DefaultPolicy() Policy {
	return Policy{WarningThreshold: 5, DeletionThreshold: 6}
}

func (p Policy) Validate() error {
	if p.WarningThreshold < 1 {
		return fmt.Errorf("warning threshold must be at least 1, got %d", p.WarningThreshold)
	}
	if p.DeletionThreshold <= p.WarningThreshold {
		return fmt.Errorf("deletion threshold %d must exceed warning threshold %d", p.DeletionThreshold, p.WarningThreshold)
	}
	return nil
}

// Decide maps the number of existing records to an outcome. A request that
// would become the DeletionThreshold-th record deletes the doctor instead.
func (p Policy) Decide(prior int) Decision {
	switch {
	case prior >= p.DeletionThreshold-1:
		return DecisionDelete
	case prior+1 >= p.WarningThreshold:
		return DecisionSuspendWithWarning
	default:
		return DecisionSuspend
	}
}

// Warning is the caller-facing notice attached to a warned suspension.
// count is the total after that suspension was recorded.
func (p Policy) Warning(count int) string {
	if p.Decide(count) == DecisionDelete {
		return fmt.Sprintf("doctor now has %d suspensions; the next suspension will permanently delete the account", count)
	}
	return fmt.Sprintf("doctor now has %d suspensions; suspension %d will permanently delete the account", count, p.DeletionThreshold)
}

type CountSummary struct {
	DoctorID                 uuid.UUID `json:"doctor_id"`
	DoctorName               string    `json:"doctor_name"`
	SuspensionCount          int       `json:"suspension_count"`
	WarningThreshold         int       `json:"warning_threshold"`
	DeletionThreshold        int       `json:"deletion_threshold"`
	IsAtWarningThreshold     bool      `json:"is_at_warning_threshold"`
	NextSuspensionWillDelete bool      `json:"next_suspension_will_delete"`
}

func (p Policy) Summary(doctorID uuid.UUID, doctorName string, count int) CountSummary {
	return CountSummary{
		DoctorID:                 doctorID,
		DoctorName:               doctorName,
		SuspensionCount:          count,
		WarningThreshold:         p.WarningThreshold,
		DeletionThreshold:        p.DeletionThreshold,
		IsAtWarningThreshold:     count >= p.WarningThreshold,
		NextSuspensionWillDelete: count >= p.DeletionThreshold,
	}
}
