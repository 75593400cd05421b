package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@x.com"))
	assert.NoError(t, ValidateEmail("  Buyer.One+tag@Shop.io "))

	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at.com"))
	assert.Error(t, ValidateEmail("a@b@c.com"))
	assert.Error(t, ValidateEmail("a@nodot"))
	assert.Error(t, ValidateEmail("a b@x.com"))
}

func TestValidatePhoneAndAge(t *testing.T) {
	phone := "+2348012345678"
	bad := "12ab"
	assert.NoError(t, ValidatePhone(nil))
	assert.NoError(t, ValidatePhone(&phone))
	assert.Error(t, ValidatePhone(&bad))

	ok, young := 30, 5
	assert.NoError(t, ValidateAge(nil))
	assert.NoError(t, ValidateAge(&ok))
	assert.Error(t, ValidateAge(&young))
}

func TestValidatePrice(t *testing.T) {
	assert.NoError(t, ValidatePrice(decimal.Zero))
	assert.NoError(t, ValidatePrice(decimal.RequireFromString("2500.50")))
	assert.NoError(t, ValidatePrice(decimal.RequireFromString("10.000")))

	assert.Error(t, ValidatePrice(decimal.NewFromInt(-1)))
	assert.Error(t, ValidatePrice(decimal.RequireFromString("1.999")))
	assert.Error(t, ValidatePrice(decimal.NewFromInt(200_000_000)))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Secret123"))

	assert.Error(t, ValidatePassword("short1A"))
	assert.Error(t, ValidatePassword("alllowercase1"))
	assert.Error(t, ValidatePassword("ALLUPPERCASE1"))
	assert.Error(t, ValidatePassword("NoDigitsHere"))
	assert.Error(t, ValidatePassword("Aa1"+strings.Repeat("x", 80)))
}

func TestValidateOTP(t *testing.T) {
	assert.NoError(t, ValidateOTP("123456"))
	assert.Error(t, ValidateOTP("12a456"))
	assert.Error(t, ValidateOTP(""))
}
