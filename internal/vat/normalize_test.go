package vat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("strips formatting and country prefix", func(t *testing.T) {
		id, err := Normalize("se", "SE 556-012.345 601")
		require.NoError(t, err)
		assert.Equal(t, ID{CountryCode: "SE", Number: "556012345601"}, id)
	})

	t.Run("lower case input is upper cased", func(t *testing.T) {
		id, err := Normalize("nl", "nl123456789b01")
		require.NoError(t, err)
		assert.Equal(t, ID{CountryCode: "NL", Number: "123456789B01"}, id)
	})

	t.Run("accepts both Greek prefixes", func(t *testing.T) {
		el, err := Normalize("EL", "EL123456789")
		require.NoError(t, err)
		gr, err2 := Normalize("GR", "GR123456789")
		require.NoError(t, err2)
		assert.Equal(t, el, gr)
		assert.Equal(t, "EL", el.CountryCode)
		assert.Equal(t, "123456789", el.Number)
	})

	t.Run("unknown country code", func(t *testing.T) {
		_, err := Normalize("US", "123456789")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, CategoryValidation, e.Category)
		assert.Equal(t, CodeInvalidCountry, e.Code)
	})

	t.Run("empty after cleaning", func(t *testing.T) {
		_, err := Normalize("SE", " -. ")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, CodeEmptyNumber, e.Code)
	})

	t.Run("bare prefix is not a number", func(t *testing.T) {
		_, err := Normalize("SE", "SE")
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, CodeEmptyNumber, e.Code)
	})
}

// Normalization must be idempotent: normalizing an already-normalized
// identifier yields the same identifier.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := [][2]string{
		{"SE", "SE 556-012.345 601"},
		{"gr", "GR123456789"},
		{"NL", "123456789B01"},
		{"AT", "atu12345678"},
	}
	for _, in := range inputs {
		first, err := Normalize(in[0], in[1])
		require.NoError(t, err)
		second, err := Normalize(first.CountryCode, first.Number)
		require.NoError(t, err)
		assert.Equal(t, first, second, "normalize(normalize(%q, %q)) diverged", in[0], in[1])
	}
}

func TestValidateFormat(t *testing.T) {
	t.Run("length before pattern", func(t *testing.T) {
		err := ValidateFormat(ID{CountryCode: "SE", Number: "123"})
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, CodeInvalidLength, e.Code)
	})

	t.Run("pattern mismatch", func(t *testing.T) {
		err := ValidateFormat(ID{CountryCode: "AT", Number: "123456789"})
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, CodeInvalidFormat, e.Code)
	})

	t.Run("valid number", func(t *testing.T) {
		assert.NoError(t, ValidateFormat(ID{CountryCode: "SE", Number: "556012345601"}))
	})
}
