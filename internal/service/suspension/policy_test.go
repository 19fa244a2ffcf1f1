package suspension

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		prior int
		want  Decision
	}{
		{0, DecisionSuspend},
		{3, DecisionSuspend},
		{4, DecisionSuspendWithWarning},
		{5, DecisionDelete},
		{9, DecisionDelete},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Decide(tt.prior), "prior=%d", tt.prior)
	}
}

func TestSummaryFlags(t *testing.T) {
	p := DefaultPolicy()
	id := uuid.New()

	for n := 0; n <= 7; n++ {
		s := p.Summary(id, "Dr. Mensah", n)
		assert.Equal(t, n >= 5, s.IsAtWarningThreshold, "n=%d", n)
		assert.Equal(t, n >= 6, s.NextSuspensionWillDelete, "n=%d", n)
		assert.Equal(t, 5, s.WarningThreshold)
		assert.Equal(t, 6, s.DeletionThreshold)
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{WarningThreshold: 0, DeletionThreshold: 2}.Validate())
	assert.Error(t, Policy{WarningThreshold: 3, DeletionThreshold: 3}.Validate())
}

func TestCustomThresholds(t *testing.T) {
	p := Policy{WarningThreshold: 2, DeletionThreshold: 3}
	assert.Equal(t, DecisionSuspend, p.Decide(0))
	assert.Equal(t, DecisionSuspendWithWarning, p.Decide(1))
	assert.Equal(t, DecisionDelete, p.Decide(2))
	assert.Contains(t, p.Warning(2), "the next suspension will permanently delete")

	wide := Policy{WarningThreshold: 3, DeletionThreshold: 6}
	assert.Equal(t, DecisionSuspendWithWarning, wide.Decide(2))
	assert.Equal(t, DecisionSuspendWithWarning, wide.Decide(3))
	assert.Equal(t, DecisionDelete, wide.Decide(5))
	assert.Equal(t, "doctor now has 3 suspensions; suspension 6 will permanently delete the account", wide.Warning(3))
	assert.Equal(t, "doctor now has 4 suspensions; suspension 6 will permanently delete the account", wide.Warning(4))
	assert.Equal(t, "doctor now has 5 suspensions; the next suspension will permanently delete the account", wide.Warning(5))
}

func TestDefaultWarning(t *testing.T) {
	assert.Equal(t, "doctor now has 5 suspensions; the next suspension will permanently delete the account",
		DefaultPolicy().Warning(5))
}
