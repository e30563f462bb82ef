package diary

import (
	"errors"
	"testing"
	"time"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
	"github.com/vadimpetrov/diacare-bot/internal/dosing"
	"github.com/vadimpetrov/diacare-bot/internal/smartinput"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testProfile() dosing.Profile {
	return dosing.Profile{ICR: 10, CF: 2, TargetBG: 6}
}

func TestDoseXEFlow_RoundTrip(t *testing.T) {
	p := NewPending(42, now, FlowDoseXE, smartinput.Fields{})

	field, ok := p.NextField()
	if !ok || field != smartinput.FieldSugar {
		t.Fatalf("NextField() = %v, want sugar", field)
	}
	if err := p.FillNext("5"); err != nil {
		t.Fatalf("FillNext(sugar) error = %v", err)
	}

	field, _ = p.NextField()
	if field != smartinput.FieldXE {
		t.Fatalf("NextField() = %v, want xe", field)
	}
	if err := p.FillNext("2"); err != nil {
		t.Fatalf("FillNext(xe) error = %v", err)
	}

	if !p.Complete() {
		t.Fatal("entry should be complete")
	}
	if p.CarbsG == nil || *p.CarbsG != 24 {
		t.Fatalf("carbs = %v, want 24", p.CarbsG)
	}

	if err := p.FinalizeDose(testProfile()); err != nil {
		t.Fatalf("FinalizeDose() error = %v", err)
	}
	if p.Dose == nil || *p.Dose != 2.4 {
		t.Fatalf("dose = %v, want 2.4", p.Dose)
	}
}

func TestFillNext_NegativePreservesState(t *testing.T) {
	p := NewPending(42, now, FlowSugarOnly, smartinput.Fields{})

	err := p.FillNext("-1")
	if !apperrors.IsValidation(err) {
		t.Fatalf("FillNext(-1) error = %v, want validation error", err)
	}
	if p.SugarBefore != nil {
		t.Error("negative sugar was stored")
	}
	if field, ok := p.NextField(); !ok || field != smartinput.FieldSugar {
		t.Errorf("state advanced past sugar after rejected input")
	}
}

func TestFillNext_CommaDecimal(t *testing.T) {
	p := NewPending(42, now, FlowSugarOnly, smartinput.Fields{})
	if err := p.FillNext("5,6"); err != nil {
		t.Fatalf("FillNext() error = %v", err)
	}
	if *p.SugarBefore != 5.6 {
		t.Errorf("sugar = %v, want 5.6", *p.SugarBefore)
	}
	if !p.Complete() {
		t.Error("sugar-only entry should be complete")
	}
}

func TestFillNext_MismatchedUnit(t *testing.T) {
	p := NewPending(42, now, FlowSmartInput, smartinput.Fields{Sugar: ptr(5), XE: ptr(1)})

	// Only the dose is missing; a glucose-tagged number is a hard error.
	err := p.FillNext("5,6 ммоль")
	var mismatch *smartinput.MismatchedUnitError
	if !errors.As(err, &mismatch) {
		t.Fatalf("FillNext() error = %v, want MismatchedUnitError", err)
	}
	if p.Dose != nil {
		t.Error("mismatched value was stored")
	}
	if !apperrors.IsValidation(err) {
		t.Errorf("FillNext() mismatch error = %v, not classified as validation", err)
	}
}

func TestSmartInputSeed_PartialMissingOrder(t *testing.T) {
	p := NewPending(42, now, FlowSmartInput, smartinput.Fields{XE: ptr(3)})

	want := []smartinput.Field{smartinput.FieldSugar, smartinput.FieldDose}
	if len(p.Missing) != len(want) {
		t.Fatalf("missing = %v, want %v", p.Missing, want)
	}
	for i := range want {
		if p.Missing[i] != want[i] {
			t.Fatalf("missing = %v, want %v", p.Missing, want)
		}
	}
	if p.CarbsG == nil || *p.CarbsG != 36 {
		t.Errorf("carbs = %v, want 36 derived from xe", p.CarbsG)
	}
}

func TestSmartInputSeed_AllFieldsComplete(t *testing.T) {
	p := NewPending(42, now, FlowSmartInput, smartinput.Fields{
		Sugar: ptr(5), XE: ptr(1), Dose: ptr(2),
	})
	if !p.Complete() {
		t.Errorf("fully seeded entry should be complete, missing %v", p.Missing)
	}
}

func TestFinalizeDose_ProfileNotConfigured(t *testing.T) {
	p := NewPending(42, now, FlowDoseCarbs, smartinput.Fields{
		Sugar: ptr(5), Carbs: ptr(24),
	})
	err := p.FinalizeDose(dosing.Profile{})
	if !errors.Is(err, ErrProfileNotConfigured) {
		t.Fatalf("FinalizeDose() error = %v, want ErrProfileNotConfigured", err)
	}
}

func TestApplyPatch_InvalidatesDose(t *testing.T) {
	p := NewPending(42, now, FlowDoseXE, smartinput.Fields{Sugar: ptr(5), XE: ptr(2)})
	if err := p.FinalizeDose(testProfile()); err != nil {
		t.Fatalf("FinalizeDose() error = %v", err)
	}
	if *p.Dose != 2.4 {
		t.Fatalf("dose = %v, want 2.4", *p.Dose)
	}

	if err := p.ApplyPatch(map[smartinput.Field]float64{smartinput.FieldXE: 3}); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	if p.Dose != nil {
		t.Fatal("dose cache survived a field edit")
	}
	if *p.CarbsG != 36 {
		t.Errorf("carbs = %v, want 36", *p.CarbsG)
	}

	if err := p.FinalizeDose(testProfile()); err != nil {
		t.Fatalf("FinalizeDose() after patch error = %v", err)
	}
	if *p.Dose != 3.6 {
		t.Errorf("recomputed dose = %v, want 3.6", *p.Dose)
	}
}

func TestApplyPatch_ExplicitDoseKept(t *testing.T) {
	p := NewPending(42, now, FlowDoseXE, smartinput.Fields{Sugar: ptr(5), XE: ptr(2)})
	if err := p.FinalizeDose(testProfile()); err != nil {
		t.Fatalf("FinalizeDose() error = %v", err)
	}

	patch := map[smartinput.Field]float64{
		smartinput.FieldXE:   3,
		smartinput.FieldDose: 5,
	}
	if err := p.ApplyPatch(patch); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	if p.Dose == nil || *p.Dose != 5 {
		t.Errorf("dose = %v, want explicit 5", p.Dose)
	}
}

func TestApplyPatch_Negative(t *testing.T) {
	p := NewPending(42, now, FlowDoseXE, smartinput.Fields{Sugar: ptr(5), XE: ptr(2)})
	err := p.ApplyPatch(map[smartinput.Field]float64{smartinput.FieldSugar: -3})
	if !apperrors.IsValidation(err) {
		t.Fatalf("ApplyPatch() error = %v, want validation error", err)
	}
	if *p.SugarBefore != 5 {
		t.Error("negative patch was applied")
	}
}

func ptr(v float64) *float64 { return &v }
