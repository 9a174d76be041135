package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySelection marks a selection that produced no rows. It is an
	// informational state, not a failure.
	ErrEmptySelection = errors.New("empty selection")

	// ErrInvalidHorizon marks a horizon outside [HorizonMin, HorizonMax].
	ErrInvalidHorizon = errors.New("invalid horizon")
)

// Reasons reported by EmptySelectionError.
const (
	ReasonNoMatch = "no_match"
	ReasonClipped = "clipped"
)

// EmptySelectionError describes why a selection came back empty.
type EmptySelectionError struct {
	Product     string
	Region      string
	HorizonDays int
	Reason      string
}

func (e *EmptySelectionError) Error() string {
	if e.Reason == ReasonClipped {
		return fmt.Sprintf("no rows for %s/%s within %d days", e.Product, e.Region, e.HorizonDays)
	}
	return fmt.Sprintf("no rows for %s/%s", e.Product, e.Region)
}

// Is implements errors.Is support
func (e *EmptySelectionError) Is(target error) bool {
	return target == ErrEmptySelection
}

// ValidateHorizon returns ErrInvalidHorizon when days is outside the allowed window.
func ValidateHorizon(days int) error {
	if days < HorizonMin || days > HorizonMax {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidHorizon, days, HorizonMin, HorizonMax)
	}
	return nil
}

// ClampHorizon forces days into [HorizonMin, HorizonMax].
func ClampHorizon(days int) int {
	return min(max(days, HorizonMin), HorizonMax)
}
