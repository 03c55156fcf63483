package scoring

import (
	"errors"
	"fmt"
)

// Sentinel errors for scoring outcomes. Callers match with errors.Is.
var (
	// ErrInvalidInput marks raw metrics that are out of domain or
	// internally inconsistent. Rejected at the channel boundary rather
	// than silently corrected.
	ErrInvalidInput = errors.New("invalid channel input")

	// ErrInsufficientData means no channel at all could be scored for a
	// company/period, so no composite record is produced.
	ErrInsufficientData = errors.New("insufficient data for composite score")
)

func invalidInputf(ch Channel, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s: %w", ch, fmt.Sprintf(format, args...), ErrInvalidInput)
}
