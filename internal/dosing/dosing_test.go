package dosing

import (
	"testing"
)

func validProfile() Profile {
	return Profile{ICR: 10, CF: 2, TargetBG: 6}
}

func TestCalcBolus(t *testing.T) {
	tests := []struct {
		name    string
		carbsG  float64
		bg      float64
		profile Profile
		want    float64
	}{
		{"meal only, at target", 24, 6, validProfile(), 2.4},
		{"meal plus correction", 24, 10, validProfile(), 4.4},
		{"below target is clamped", 24, 5, validProfile(), 2.4},
		{"correction only", 0, 12, validProfile(), 3.0},
		{"zero everything", 0, 6, validProfile(), 0},
		{"rounds to one decimal", 10, 6.1, Profile{ICR: 3, CF: 1, TargetBG: 6}, 3.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalcBolus(tt.carbsG, tt.bg, tt.profile)
			if err != nil {
				t.Fatalf("CalcBolus() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CalcBolus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalcBolus_InvalidProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
	}{
		{"zero icr", Profile{ICR: 0, CF: 2, TargetBG: 6}},
		{"negative icr", Profile{ICR: -1, CF: 2, TargetBG: 6}},
		{"zero cf", Profile{ICR: 10, CF: 0, TargetBG: 6}},
		{"zero target", Profile{ICR: 10, CF: 2, TargetBG: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CalcBolus(24, 6, tt.profile); err == nil {
				t.Error("CalcBolus() expected validation error, got nil")
			}
		})
	}
}

func TestCalcBolus_NegativeInputs(t *testing.T) {
	if _, err := CalcBolus(-1, 6, validProfile()); err == nil {
		t.Error("negative carbs accepted")
	}
	if _, err := CalcBolus(24, -1, validProfile()); err == nil {
		t.Error("negative blood sugar accepted")
	}
}

func TestCalcBolus_Monotonic(t *testing.T) {
	p := validProfile()

	prev := 0.0
	for carbs := 0.0; carbs <= 120; carbs += 12 {
		got, err := CalcBolus(carbs, 8, p)
		if err != nil {
			t.Fatalf("CalcBolus() error = %v", err)
		}
		if got < prev {
			t.Errorf("dose decreased from %v to %v at carbs=%v", prev, got, carbs)
		}
		prev = got
	}

	prev = 0.0
	for bg := 0.0; bg <= 20; bg += 0.5 {
		got, err := CalcBolus(36, bg, p)
		if err != nil {
			t.Fatalf("CalcBolus() error = %v", err)
		}
		if got < prev {
			t.Errorf("dose decreased from %v to %v at bg=%v", prev, got, bg)
		}
		prev = got
	}
}

func TestCalcBolus_Deterministic(t *testing.T) {
	a, _ := CalcBolus(24, 9.3, validProfile())
	b, _ := CalcBolus(24, 9.3, validProfile())
	if a != b {
		t.Errorf("CalcBolus() not deterministic: %v != %v", a, b)
	}
}
