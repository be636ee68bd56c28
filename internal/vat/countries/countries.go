// Package countries holds the static per-country VAT reference data: format
// specs, names, EU membership, and standard rates. The tables are the single
// source of truth for which country codes the gateway supports.
package countries

import (
	"fmt"
	"regexp"
	"strings"
)

// Spec describes the structural rules for one country's VAT numbers.
// Length bounds apply to the cleaned number without the country prefix.
type Spec struct {
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
}

// Country bundles the metadata the engine needs for one supported code.
type Country struct {
	Code         string
	Name         string
	EUMember     bool
	StandardRate float64
	Format       Spec
}

// aliases maps historically-used codes to the code VIES recognizes.
// Greece registers under EL while its ISO alpha-2 code is GR; both must be
// accepted on input. Each alias is an explicit entry, not a derivation.
var aliases = map[string]string{
	"GR": "EL",
}

// table is the supported set: the 27 EU member states plus XI, the code
// Northern Ireland uses for goods under the post-exit protocol.
var table = map[string]Country{
	"AT": {"AT", "Austria", true, 20, spec(9, 9, `^U\d{8}$`)},
	"BE": {"BE", "Belgium", true, 21, spec(10, 10, `^[01]\d{9}$`)},
	"BG": {"BG", "Bulgaria", true, 20, spec(9, 10, `^\d{9,10}$`)},
	"CY": {"CY", "Cyprus", true, 19, spec(9, 9, `^\d{8}[A-Z]$`)},
	"CZ": {"CZ", "Czechia", true, 21, spec(8, 10, `^\d{8,10}$`)},
	"DE": {"DE", "Germany", true, 19, spec(9, 9, `^\d{9}$`)},
	"DK": {"DK", "Denmark", true, 25, spec(8, 8, `^\d{8}$`)},
	"EE": {"EE", "Estonia", true, 24, spec(9, 9, `^\d{9}$`)},
	"EL": {"EL", "Greece", true, 24, spec(9, 9, `^\d{9}$`)},
	"ES": {"ES", "Spain", true, 21, spec(9, 9, `^[A-Z0-9]\d{7}[A-Z0-9]$`)},
	"FI": {"FI", "Finland", true, 25.5, spec(8, 8, `^\d{8}$`)},
	"FR": {"FR", "France", true, 20, spec(11, 11, `^[A-Z0-9]{2}\d{9}$`)},
	"HR": {"HR", "Croatia", true, 25, spec(11, 11, `^\d{11}$`)},
	"HU": {"HU", "Hungary", true, 27, spec(8, 8, `^\d{8}$`)},
	"IE": {"IE", "Ireland", true, 23, spec(8, 9, `^(\d{7}[A-W][A-I]?|\d[A-Z+*]\d{5}[A-W])$`)},
	"IT": {"IT", "Italy", true, 22, spec(11, 11, `^\d{11}$`)},
	"LT": {"LT", "Lithuania", true, 21, spec(9, 12, `^(\d{9}|\d{12})$`)},
	"LU": {"LU", "Luxembourg", true, 17, spec(8, 8, `^\d{8}$`)},
	"LV": {"LV", "Latvia", true, 21, spec(11, 11, `^\d{11}$`)},
	"MT": {"MT", "Malta", true, 18, spec(8, 8, `^\d{8}$`)},
	"NL": {"NL", "Netherlands", true, 21, spec(12, 12, `^\d{9}B\d{2}$`)},
	"PL": {"PL", "Poland", true, 23, spec(10, 10, `^\d{10}$`)},
	"PT": {"PT", "Portugal", true, 23, spec(9, 9, `^\d{9}$`)},
	"RO": {"RO", "Romania", true, 21, spec(2, 10, `^\d{2,10}$`)},
	"SE": {"SE", "Sweden", true, 25, spec(12, 12, `^\d{12}$`)},
	"SI": {"SI", "Slovenia", true, 22, spec(8, 8, `^\d{8}$`)},
	"SK": {"SK", "Slovakia", true, 23, spec(10, 10, `^\d{10}$`)},
	"XI": {"XI", "Northern Ireland", false, 20, spec(5, 12, `^(\d{9}|\d{12}|(GD|HA)\d{3})$`)},
}

func spec(min, max int, pattern string) Spec {
	return Spec{MinLength: min, MaxLength: max, Pattern: regexp.MustCompile(pattern)}
}

// Resolve canonicalizes a country code: trims, upper-cases, and applies the
// alias table. Returns false when the code is not supported.
//
// Usage: call at every trust boundary before any format or registry work.
func Resolve(code string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if canonical, ok := aliases[c]; ok {
		c = canonical
	}
	_, ok := table[c]
	return c, ok
}

// Get returns the metadata for a canonical country code.
func Get(code string) (Country, bool) {
	c, ok := Resolve(code)
	if !ok {
		return Country{}, false
	}
	return table[c], true
}

// IsSupported reports whether the code (or an alias of it) is in the table.
func IsSupported(code string) bool {
	_, ok := Resolve(code)
	return ok
}

// IsEUMember reports EU membership for the code. Unknown codes are not
// members; XI is supported for validation but is not an EU member state.
func IsEUMember(code string) bool {
	c, ok := Get(code)
	return ok && c.EUMember
}

// StandardRate returns the standard VAT rate for the code, or false when the
// code is unknown. Rates are a point-in-time snapshot, not effective-dated.
func StandardRate(code string) (float64, bool) {
	c, ok := Get(code)
	if !ok {
		return 0, false
	}
	return c.StandardRate, true
}

// Name returns the English short name for the code.
func Name(code string) (string, bool) {
	c, ok := Get(code)
	if !ok {
		return "", false
	}
	return c.Name, true
}

// Codes returns all supported canonical codes. The slice is a fresh copy.
func Codes() []string {
	out := make([]string, 0, len(table))
	for code := range table {
		out = append(out, code)
	}
	return out
}

// FormatSpec returns the structural rules for the code.
func FormatSpec(code string) (Spec, bool) {
	c, ok := Get(code)
	if !ok {
		return Spec{}, false
	}
	return c.Format, true
}

// CheckFormat validates a cleaned number against the country's spec.
// Length bounds are checked before the pattern so a too-short or too-long
// input is never misreported as a pattern mismatch.
func CheckFormat(code, number string) error {
	sp, ok := FormatSpec(code)
	if !ok {
		return fmt.Errorf("unsupported country code %q", code)
	}
	if len(number) < sp.MinLength || len(number) > sp.MaxLength {
		return &FormatError{Code: code, Number: number, LengthViolation: true,
			Reason: fmt.Sprintf("length %d outside [%d, %d]", len(number), sp.MinLength, sp.MaxLength)}
	}
	if !sp.Pattern.MatchString(number) {
		return &FormatError{Code: code, Number: number,
			Reason: fmt.Sprintf("number does not match the %s pattern", code)}
	}
	return nil
}

// FormatError reports a structural violation. LengthViolation distinguishes
// length failures from pattern failures for callers that surface distinct
// error codes.
type FormatError struct {
	Code            string
	Number          string
	LengthViolation bool
	Reason          string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s VAT number format: %s", e.Code, e.Reason)
}
