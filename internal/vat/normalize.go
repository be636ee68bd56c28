package vat

import (
	"errors"
	"fmt"
	"strings"

	"vatgate/internal/vat/countries"
)

// Normalize canonicalizes a country code and cleans a raw VAT number into an
// ID ready for format or registry validation.
//
// Cleaning upper-cases the number, strips spaces, tabs, hyphens and periods,
// and removes a leading country prefix when present - including the GR alias
// for Greek numbers. Normalize is idempotent: feeding its output back in
// yields the same ID.
func Normalize(countryCode, raw string) (ID, error) {
	code, ok := countries.Resolve(countryCode)
	if !ok {
		return ID{}, NewValidationError(CodeInvalidCountry,
			fmt.Sprintf("unsupported country code %q", countryCode))
	}

	number := cleanNumber(raw)
	number = stripPrefix(number, code)
	if number == "" {
		return ID{}, NewValidationError(CodeEmptyNumber, "VAT number is empty after normalization")
	}
	return ID{CountryCode: code, Number: number}, nil
}

func cleanNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		switch r {
		case ' ', '\t', '-', '.':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripPrefix removes one leading country prefix. Greek numbers may carry
// either the VIES code EL or the ISO code GR; both are accepted.
func stripPrefix(number, code string) string {
	prefixes := []string{code}
	if code == "EL" {
		prefixes = append(prefixes, "GR")
	}
	for _, p := range prefixes {
		if strings.HasPrefix(number, p) && len(number) > len(p) {
			return number[len(p):]
		}
	}
	return number
}

// ValidateFormat checks an already-normalized identifier against the
// country's structural rules. Length violations are reported before pattern
// violations.
func ValidateFormat(id ID) error {
	code, ok := countries.Resolve(id.CountryCode)
	if !ok {
		return NewValidationError(CodeInvalidCountry,
			fmt.Sprintf("unsupported country code %q", id.CountryCode))
	}
	if err := countries.CheckFormat(code, id.Number); err != nil {
		var fe *countries.FormatError
		if errors.As(err, &fe) && fe.LengthViolation {
			return NewValidationError(CodeInvalidLength, fe.Reason)
		}
		return NewValidationError(CodeInvalidFormat, err.Error())
	}
	return nil
}
