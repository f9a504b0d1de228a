package contact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorPhoneSyntax(t *testing.T) {
	v := NewValidator(nil, 0, "", nil)
	rec := v.validatePhone("+4989123456")
	assert.True(t, rec.IsValid)

	rec2 := v.validatePhone("123")
	assert.False(t, rec2.IsValid)
}

func TestValidatorEmailBasicLevelSyntaxOnly(t *testing.T) {
	v := NewValidator(nil, 0, "", nil)
	rec := v.validateEmail(context.Background(), "info@acme.de", LevelBasic)
	assert.True(t, rec.IsValid)
	assert.Equal(t, ValidationSyntax, rec.Method)
}

func TestValidatorEmailRejectsBlockedDomainAtBasicLevel(t *testing.T) {
	v := NewValidator(nil, 0, "", nil)
	rec := v.validateEmail(context.Background(), "x@mailinator.com", LevelBasic)
	assert.False(t, rec.IsValid)
	assert.Contains(t, rec.Errors, "rejected_domain")
}

func TestValidatorURLBasicLevel(t *testing.T) {
	v := NewValidator(nil, 0, "", nil)
	rec := v.validateURL(context.Background(), "https://acme.de/kontakt", LevelBasic, false)
	assert.True(t, rec.IsValid)

	rec2 := v.validateURL(context.Background(), "not-a-url", LevelBasic, false)
	assert.False(t, rec2.IsValid)
}

func TestValidatorNeverThrowsOnUnsupportedMethod(t *testing.T) {
	v := NewValidator(nil, 0, "", nil)
	rec := v.Validate(context.Background(), Contact{Method: MethodAddress, Value: "x"}, LevelBasic)
	assert.False(t, rec.IsValid)
	assert.NotEmpty(t, rec.Errors)
}

func TestValidateBatchSummary(t *testing.T) {
	v := NewValidator(nil, 0, "", nil)
	contacts := []Contact{
		{Method: MethodEmail, Value: "info@acme.de"},
		{Method: MethodPhone, Value: "not-a-phone"},
	}
	records, summary := v.ValidateBatch(context.Background(), contacts, LevelBasic)
	require.Len(t, records, 2)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 1, summary.Invalid)
	assert.InDelta(t, 0.5, summary.SuccessRate, 0.001)
}
