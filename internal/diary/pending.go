// Package diary implements the multi-turn accumulator that collects a
// partial diary entry across conversation turns, reconciles it against
// the user's dosing profile and prepares it for an atomic commit.
package diary

import (
	"fmt"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/dosing"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

// Flow selects which fields the accumulator asks for and whether the
// dose is computed or entered.
type Flow string

const (
	// FlowSmartInput logs whatever the user typed; the dose is the one
	// actually taken, so it is collected, not computed.
	FlowSmartInput Flow = "smart_input"
	// FlowDoseCarbs computes a dose from grams of carbs.
	FlowDoseCarbs Flow = "dose_carbs"
	// FlowDoseXE computes a dose from bread units.
	FlowDoseXE Flow = "dose_xe"
	// FlowSugarOnly saves a bare glucose reading.
	FlowSugarOnly Flow = "sugar_only"
)

// GramsPerXE converts bread units to grams of carbohydrate.
const GramsPerXE = 12.0

// PendingEntry accumulates diary fields across turns. Exactly one exists
// per active conversation; it lives in the session store until committed
// or cancelled.
type PendingEntry struct {
	TelegramID  int64              `json:"telegram_id"`
	EventTime   time.Time          `json:"event_time"`
	Flow        Flow               `json:"flow"`
	SugarBefore *float64           `json:"sugar_before,omitempty"`
	CarbsG      *float64           `json:"carbs_g,omitempty"`
	XE          *float64           `json:"xe,omitempty"`
	Dose        *float64           `json:"dose,omitempty"`
	PhotoPath   string             `json:"photo_path,omitempty"`
	Missing     []smartinput.Field `json:"missing"`
	NeedsDose   bool               `json:"needs_dose"`
}

// NewPending creates the accumulator for a flow. Seed carries fields
// already known from smart input or photo analysis.
func NewPending(telegramID int64, now time.Time, flow Flow, seed smartinput.Fields) *PendingEntry {
	p := &PendingEntry{
		TelegramID: telegramID,
		EventTime:  now.UTC(),
		Flow:       flow,
		NeedsDose:  flow == FlowDoseCarbs || flow == FlowDoseXE,
	}
	p.apply(seed)
	p.rebuildMissing()
	return p
}

func (p *PendingEntry) apply(f smartinput.Fields) {
	if f.Sugar != nil {
		p.SugarBefore = f.Sugar
	}
	if f.XE != nil {
		p.XE = f.XE
		carbs := *f.XE * GramsPerXE
		p.CarbsG = &carbs
	}
	if f.Carbs != nil {
		p.CarbsG = f.Carbs
	}
	if f.Dose != nil {
		p.Dose = f.Dose
	}
}

// askOrder is the fixed collection order; known fields are skipped.
func (p *PendingEntry) askOrder() []smartinput.Field {
	switch p.Flow {
	case FlowDoseCarbs:
		return []smartinput.Field{smartinput.FieldSugar, smartinput.FieldCarbs}
	case FlowDoseXE:
		return []smartinput.Field{smartinput.FieldSugar, smartinput.FieldXE}
	case FlowSugarOnly:
		return []smartinput.Field{smartinput.FieldSugar}
	default:
		return []smartinput.Field{smartinput.FieldSugar, smartinput.FieldXE, smartinput.FieldDose}
	}
}

func (p *PendingEntry) has(field smartinput.Field) bool {
	switch field {
	case smartinput.FieldSugar:
		return p.SugarBefore != nil
	case smartinput.FieldXE:
		return p.XE != nil || p.CarbsG != nil
	case smartinput.FieldCarbs:
		return p.CarbsG != nil
	case smartinput.FieldDose:
		return p.Dose != nil
	}
	return false
}

func (p *PendingEntry) rebuildMissing() {
	p.Missing = p.Missing[:0]
	for _, f := range p.askOrder() {
		if !p.has(f) {
			p.Missing = append(p.Missing, f)
		}
	}
}

// NextField returns the field to ask for, if any.
func (p *PendingEntry) NextField() (smartinput.Field, bool) {
	if len(p.Missing) == 0 {
		return "", false
	}
	return p.Missing[0], true
}

// Complete reports whether every required field is present.
func (p *PendingEntry) Complete() bool {
	return len(p.Missing) == 0
}

// FillNext parses a numeric reply for the head of the missing list.
// On a validation error the missing list is untouched so the user stays
// at the same step.
func (p *PendingEntry) FillNext(text string) error {
	field, ok := p.NextField()
	if !ok {
		return apperrors.NewInternalError(fmt.Errorf("fill on complete entry"))
	}

	value, err := smartinput.ExpectNumber(text, field)
	if err != nil {
		return err
	}
	if err := p.setField(field, value); err != nil {
		return err
	}
	p.Missing = p.Missing[1:]
	return nil
}

func (p *PendingEntry) setField(field smartinput.Field, value float64) error {
	if value < 0 {
		return negativeFieldError(field)
	}
	switch field {
	case smartinput.FieldSugar:
		p.SugarBefore = &value
	case smartinput.FieldXE:
		p.XE = &value
		carbs := value * GramsPerXE
		p.CarbsG = &carbs
	case smartinput.FieldCarbs:
		p.CarbsG = &value
	case smartinput.FieldDose:
		p.Dose = &value
	}
	return nil
}

func negativeFieldError(field smartinput.Field) *apperrors.AppError {
	return apperrors.NewValidationError(fmt.Sprintf("%s must not be negative", field)).
		WithContext("field", string(field))
}

// ErrProfileNotConfigured aborts a dose flow when the user has no usable
// dosing coefficients.
var ErrProfileNotConfigured = apperrors.New(
	apperrors.ErrorTypeValidation, "PROFILE_NOT_CONFIGURED",
	"dosing profile is not configured")

// FinalizeDose computes and caches the dose for dose flows once sugar
// and carbs are collected. It is a no-op when the dose is already cached
// or the flow does not compute one.
func (p *PendingEntry) FinalizeDose(profile dosing.Profile) error {
	if !p.NeedsDose || p.Dose != nil {
		return nil
	}
	if p.SugarBefore == nil || p.CarbsG == nil {
		return apperrors.NewInternalError(fmt.Errorf("dose requested before sugar and carbs collected"))
	}
	if !profile.Configured() {
		return ErrProfileNotConfigured
	}

	dose, err := dosing.CalcBolus(*p.CarbsG, *p.SugarBefore, profile)
	if err != nil {
		return err
	}
	p.Dose = &dose
	return nil
}

// ApplyPatch overwrites named fields from a key=value edit message while
// the entry awaits confirmation. Editing any dose input invalidates the
// cached dose so it gets recomputed for the new confirmation text.
func (p *PendingEntry) ApplyPatch(patch map[smartinput.Field]float64) error {
	for field, value := range patch {
		if value < 0 {
			return negativeFieldError(field)
		}
	}

	_, doseGiven := patch[smartinput.FieldDose]
	inputsChanged := false

	for _, field := range []smartinput.Field{smartinput.FieldSugar, smartinput.FieldXE, smartinput.FieldCarbs} {
		value, ok := patch[field]
		if !ok {
			continue
		}
		if field == smartinput.FieldXE {
			// Explicit carbs in the same patch win over the XE derivation.
			if _, carbsGiven := patch[smartinput.FieldCarbs]; carbsGiven {
				p.XE = &value
				inputsChanged = true
				continue
			}
		}
		if err := p.setField(field, value); err != nil {
			return err
		}
		inputsChanged = true
	}

	if doseGiven {
		value := patch[smartinput.FieldDose]
		p.Dose = &value
	} else if inputsChanged && p.NeedsDose {
		p.Dose = nil
	}

	p.rebuildMissing()
	return nil
}
