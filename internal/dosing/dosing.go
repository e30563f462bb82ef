// Package dosing computes bolus insulin doses from a linear patient model.
package dosing

import (
	"math"

	"github.com/vadimpetrov/diacare-bot/internal/apperrors"
)

// Profile holds the linear dosing coefficients of one patient.
type Profile struct {
	ICR      float64 // grams of carbohydrate covered by one insulin unit
	CF       float64 // glucose drop per insulin unit
	TargetBG float64
}

// Configured reports whether every coefficient is usable for dose calculation.
func (p Profile) Configured() bool {
	return p.ICR > 0 && p.CF > 0 && p.TargetBG > 0
}

// CalcBolus returns the meal + correction dose rounded to one decimal.
// The correction component is clamped at zero: a below-target reading
// never reduces the meal dose.
func CalcBolus(carbsG, currentBG float64, p Profile) (float64, error) {
	if !p.Configured() {
		return 0, apperrors.NewValidationError("dosing profile coefficients must be positive")
	}
	if carbsG < 0 {
		return 0, apperrors.NewValidationError("carbs must not be negative")
	}
	if currentBG < 0 {
		return 0, apperrors.NewValidationError("blood sugar must not be negative")
	}

	meal := carbsG / p.ICR
	correction := math.Max(0, (currentBG-p.TargetBG)/p.CF)

	return math.Round((meal+correction)*10) / 10, nil
}
