// Package smartinput extracts typed diary fields from free-form messages.
//
// Users mix Russian and Latin field names ("сахар=5 xe=1 dose=2"), comma
// decimals and unit suffixes ("5,6 ммоль", "2 ед"). A number tagged with
// one field's unit where another field is expected is a hard validation
// failure, never a silent fallback.
package smartinput

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
)

// Field names a diary entry slot.
type Field string

const (
	FieldSugar Field = "sugar"
	FieldXE    Field = "xe"
	FieldDose  Field = "dose"
	FieldCarbs Field = "carbs"
)

// Fields is the result of a free-text scan. Nil means the field was not
// mentioned.
type Fields struct {
	Sugar *float64
	XE    *float64
	Dose  *float64
	Carbs *float64
}

// Empty reports whether the scan recognized nothing.
func (f Fields) Empty() bool {
	return f.Sugar == nil && f.XE == nil && f.Dose == nil && f.Carbs == nil
}

func (f *Fields) set(field Field, v float64) {
	switch field {
	case FieldSugar:
		f.Sugar = &v
	case FieldXE:
		f.XE = &v
	case FieldDose:
		f.Dose = &v
	case FieldCarbs:
		f.Carbs = &v
	}
}

// Get returns the value stored for field, if any.
func (f Fields) Get(field Field) (float64, bool) {
	var p *float64
	switch field {
	case FieldSugar:
		p = f.Sugar
	case FieldXE:
		p = f.XE
	case FieldDose:
		p = f.Dose
	case FieldCarbs:
		p = f.Carbs
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// MismatchedUnitError reports a number labeled as one field showing up
// where another field was expected.
type MismatchedUnitError struct {
	Got  Field
	Want Field
}

func (e *MismatchedUnitError) Error() string {
	return fmt.Sprintf("mismatched unit: got %s where %s was expected", e.Got, e.Want)
}

// mismatchError wraps the field pair as a validation failure so dialog
// handlers keep the user at the same step and reply with both names.
func mismatchError(got, want Field) error {
	return apperrors.Wrap(&MismatchedUnitError{Got: got, Want: want},
		apperrors.ErrorTypeValidation, "MISMATCHED_UNIT", "mismatched unit")
}

var keyFields = map[string]Field{
	"сахар":    FieldSugar,
	"глюкоза":  FieldSugar,
	"sugar":    FieldSugar,
	"glucose":  FieldSugar,
	"хе":       FieldXE,
	"xe":       FieldXE,
	"доза":     FieldDose,
	"инсулин":  FieldDose,
	"dose":     FieldDose,
	"insulin":  FieldDose,
	"углеводы": FieldCarbs,
	"углев":    FieldCarbs,
	"carbs":    FieldCarbs,
}

func unitField(unit string) (Field, bool) {
	switch {
	case unit == "":
		return "", false
	case strings.HasPrefix(unit, "ммоль"), strings.HasPrefix(unit, "mmol"):
		return FieldSugar, true
	case unit == "ед" || unit == "ед." || unit == "units":
		return FieldDose, true
	case unit == "г" || unit == "g" || strings.HasPrefix(unit, "грамм"):
		return FieldCarbs, true
	}
	return "", false
}

const numberPattern = `(-?\d+(?:[.,]\d+)?)`

var (
	// Longest alternatives first so "углеводы" wins over "углев".
	keyedValueRe = regexp.MustCompile(
		`(?i)(углеводы|глюкоза|инсулин|insulin|glucose|углев|сахар|sugar|carbs|доза|dose|хе|xe)` +
			`\s*[=:]?\s*` + numberPattern + `\s*(ммоль(?:/л)?|mmol(?:/l)?|ед\.?|units|грамм[а-яё]*|г|g)?`)

	taggedNumberRe = regexp.MustCompile(
		`(?i)` + numberPattern + `\s*(ммоль(?:/л)?|mmol(?:/l)?|ед\.?|units)`)
)

// Parse scans free text for recognized field markers. An unrecognized
// message yields an empty result with no error so callers can fall back
// to other strategies.
func Parse(text string) (Fields, error) {
	var result Fields
	lower := strings.ToLower(text)

	consumed := make([]bool, len(lower))
	for _, m := range keyedValueRe.FindAllStringSubmatchIndex(lower, -1) {
		key := lower[m[2]:m[3]]
		raw := lower[m[4]:m[5]]
		unit := ""
		if m[6] >= 0 {
			unit = lower[m[6]:m[7]]
		}

		field, ok := keyFields[key]
		if !ok {
			continue
		}
		if uf, tagged := unitField(unit); tagged && uf != field {
			return Fields{}, mismatchError(uf, field)
		}

		value, err := ParseFloat(raw)
		if err != nil {
			continue
		}
		result.set(field, value)
		for i := m[0]; i < m[1]; i++ {
			consumed[i] = true
		}
	}

	// Bare numbers carrying only a unit marker ("5,6 ммоль", "2 ед").
	for _, m := range taggedNumberRe.FindAllStringSubmatchIndex(lower, -1) {
		if consumed[m[0]] {
			continue
		}
		field, ok := unitField(lower[m[4]:m[5]])
		if !ok {
			continue
		}
		if _, already := result.Get(field); already {
			continue
		}
		value, err := ParseFloat(lower[m[2]:m[3]])
		if err != nil {
			continue
		}
		result.set(field, value)
	}

	return result, nil
}

// ExpectNumber parses a reply that should contain a single value for
// want. A value tagged as a different field is a MismatchedUnitError;
// a malformed number is a validation error. Negative values propagate
// through so the caller can reject them with a field-specific message.
func ExpectNumber(text string, want Field) (float64, error) {
	fields, err := Parse(text)
	if err != nil {
		return 0, err
	}
	if !fields.Empty() {
		if v, ok := fields.Get(want); ok {
			return v, nil
		}
		for _, f := range []Field{FieldSugar, FieldXE, FieldDose, FieldCarbs} {
			if _, ok := fields.Get(f); ok {
				return 0, mismatchError(f, want)
			}
		}
	}

	value, err := ParseFloat(strings.TrimSpace(text))
	if err != nil {
		return 0, apperrors.NewValidationError("not a number")
	}
	return value, nil
}

// ParsePatch parses a "key=value [key=value ...]" edit message. An empty
// match set is a validation error so the caller can reply with a no-op
// message instead of silently ignoring the edit.
func ParsePatch(text string) (map[Field]float64, error) {
	fields, err := Parse(text)
	if err != nil {
		return nil, err
	}

	patch := make(map[Field]float64)
	for _, f := range []Field{FieldSugar, FieldXE, FieldDose, FieldCarbs} {
		if v, ok := fields.Get(f); ok {
			patch[f] = v
		}
	}
	if len(patch) == 0 {
		return nil, apperrors.NewValidationError("no recognized fields in patch")
	}
	return patch, nil
}

// ParseFloat parses a number accepting the comma decimal separator.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

var (
	rangePattern = numberPattern + `(?:\s*[-–—]\s*` + numberPattern + `)?`

	carbsAfterRe  = regexp.MustCompile(`(?i)углевод[а-яё]*\D{0,25}?` + rangePattern)
	carbsBeforeRe = regexp.MustCompile(`(?i)` + rangePattern + `\s*(?:г|гр|грамм[а-яё]*)?\s*углевод`)
	xeAfterRe     = regexp.MustCompile(`(?i)(?:хе|хлебн[а-яё]+\s+единиц[а-яё]*)\D{0,25}?` + rangePattern)
	xeBeforeRe    = regexp.MustCompile(`(?i)` + rangePattern + `\s*(?:хе|хлебн[а-яё]+\s+единиц[а-яё]*)`)
)

// ExtractNutrition pulls carbohydrate and XE estimates out of a vision
// model's free-text meal description. Stated ranges are averaged
// ("30-40 г углеводов" becomes 35). Both nils mean nothing usable was
// found and the user should be asked to enter values manually.
func ExtractNutrition(text string) (carbsG, xe *float64) {
	carbsG = findRanged(text, carbsBeforeRe, carbsAfterRe)
	xe = findRanged(text, xeBeforeRe, xeAfterRe)
	return carbsG, xe
}

func findRanged(text string, res ...*regexp.Regexp) *float64 {
	for _, re := range res {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		lo, err := ParseFloat(m[1])
		if err != nil {
			continue
		}
		value := lo
		if m[2] != "" {
			if hi, err := ParseFloat(m[2]); err == nil {
				value = (lo + hi) / 2
			}
		}
		return &value
	}
	return nil
}
