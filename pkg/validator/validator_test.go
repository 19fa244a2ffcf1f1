package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type registration struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Kind  string `json:"kind" validate:"omitempty,oneof=temporary permanent"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(registration{Name: "Dr. Lee", Email: "lee@clinic.test"}))

	err := v.Validate(registration{Email: "nope", Kind: "forever"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "name is required")
		assert.Contains(t, err.Error(), "email must be a valid email")
		assert.Contains(t, err.Error(), "kind must be one of [temporary permanent]")
	}
}

func TestValidateField(t *testing.T) {
	v := Default()

	assert.NoError(t, v.ValidateField("email", "a@b.io", "required", "email"))
	assert.EqualError(t, v.ValidateField("email", "", "required", "email"), "email is required")
	assert.EqualError(t, v.ValidateField("note", "abc", "max=2"), "note must not exceed 2")
}

func TestTrimmedNonEmpty(t *testing.T) {
	v := New()

	assert.NoError(t, v.ValidateField("reason", " late filing ", "trimmed_nonempty"))
	assert.EqualError(t, v.ValidateField("reason", "   ", "trimmed_nonempty"), "reason must not be blank")
}
