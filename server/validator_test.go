package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupRequest struct {
	Handle    string `json:"handle" validate:"required,handle"`
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required,min=2,max=50"`
	Isolation string `json:"isolation" validate:"isolation"`
}

func TestValidatorAcceptsValidRequest(t *testing.T) {
	v := NewValidator()
	require.NotNil(t, v)
	require.Same(t, v.validate, v.GetValidator())

	err := v.Validate(signupRequest{Handle: "ada_l", Email: "ada@example.com", Name: "Ada"})
	assert.NoError(t, err)

	err = v.Validate(signupRequest{Handle: "ada_l", Email: "ada@example.com", Name: "Ada", Isolation: "serializable"})
	assert.NoError(t, err)
}

func TestValidatorFieldErrors(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		input   signupRequest
		field   string
		message string
	}{
		{
			name:    "missing_handle",
			input:   signupRequest{Email: "ada@example.com", Name: "Ada"},
			field:   "Handle",
			message: "Handle is required",
		},
		{
			name:    "uppercase_handle",
			input:   signupRequest{Handle: "Ada", Email: "ada@example.com", Name: "Ada"},
			field:   "Handle",
			message: "Handle must be 3 to 32 lowercase letters, digits or underscores",
		},
		{
			name:    "short_handle",
			input:   signupRequest{Handle: "ad", Email: "ada@example.com", Name: "Ada"},
			field:   "Handle",
			message: "Handle must be 3 to 32 lowercase letters, digits or underscores",
		},
		{
			name:    "bad_email",
			input:   signupRequest{Handle: "ada", Email: "not-an-email", Name: "Ada"},
			field:   "Email",
			message: "Email must be a valid email address",
		},
		{
			name:    "short_name",
			input:   signupRequest{Handle: "ada", Email: "ada@example.com", Name: "A"},
			field:   "Name",
			message: "Name must be at least 2 characters",
		},
		{
			name:    "unknown_isolation",
			input:   signupRequest{Handle: "ada", Email: "ada@example.com", Name: "Ada", Isolation: "chaos"},
			field:   "Isolation",
			message: "Isolation must be a known isolation level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			require.Len(t, ve.Errors, 1)
			assert.Equal(t, tt.field, ve.Errors[0].Field)
			assert.Equal(t, tt.message, ve.Errors[0].Message)
			assert.Equal(t, "validation failed: "+tt.message, ve.Error())
		})
	}
}

func TestValidationErrorSummary(t *testing.T) {
	v := NewValidator()

	err := v.Validate(signupRequest{})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 3)
	assert.Equal(t, "validation failed: 3 errors", ve.Error())

	assert.Equal(t, "validation failed", (&ValidationError{}).Error())
}

func TestValidatorRejectsNonStruct(t *testing.T) {
	err := NewValidator().Validate("plain string")
	require.Error(t, err)

	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}
