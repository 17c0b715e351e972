package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() RegistrationDraft {
	return RegistrationDraft{
		Name:       "Asha",
		Email:      "asha@example.com",
		Phone:      "9876543210",
		WorkshopID: "w1",
		Method:     PaymentAtEntry,
		Amount:     500,
	}
}

func TestValidateContact(t *testing.T) {
	require.NoError(t, validDraft().ValidateContact())

	d := validDraft()
	d.Name = "   "
	assert.ErrorIs(t, d.ValidateContact(), ErrValidation)

	d = validDraft()
	d.Email = "no-at-sign"
	assert.ErrorIs(t, d.ValidateContact(), ErrValidation)

	d = validDraft()
	d.Email = "a b@example.com"
	assert.ErrorIs(t, d.ValidateContact(), ErrValidation)

	d = validDraft()
	d.Phone = ""
	assert.ErrorIs(t, d.ValidateContact(), ErrValidation)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validDraft().Validate())

	d := validDraft()
	d.WorkshopID = ""
	assert.ErrorIs(t, d.Validate(), ErrValidation)

	d = validDraft()
	d.Method = "cheque"
	assert.ErrorIs(t, d.Validate(), ErrValidation)

	d = validDraft()
	d.Amount = -1
	assert.ErrorIs(t, d.Validate(), ErrValidation)
}

func TestPaymentMethodValid(t *testing.T) {
	assert.True(t, PaymentFree.Valid())
	assert.True(t, PaymentOnline.Valid())
	assert.True(t, PaymentAtEntry.Valid())
	assert.False(t, PaymentMethod("").Valid())
	assert.False(t, PaymentMethod("cash").Valid())
}
