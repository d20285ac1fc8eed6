package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	v := Validationf("amount must be non-zero")
	assert.True(t, IsValidation(v))
	assert.False(t, IsNotFound(v))
	assert.Contains(t, v.Error(), "amount must be non-zero")

	nf := NotFound("account", "acc-1")
	assert.True(t, IsNotFound(nf))
	assert.Contains(t, nf.Error(), "acc-1")

	cause := errors.New("connection reset")
	da := DataAccess("insert transaction", cause)
	assert.True(t, IsDataAccess(da))
	assert.ErrorIs(t, da, cause)
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("creating transaction: %w", NotFound("account", "acc-1"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestDataAccessNilCause(t *testing.T) {
	assert.NoError(t, DataAccess("update", nil))
}
