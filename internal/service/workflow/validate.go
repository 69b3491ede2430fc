package workflow

import (
	"strconv"
	"strings"
	"time"

	"github.com/avionyx/farmhand/internal/domain/models"
)

// parseNonNegativeInt accepts 0 and positive whole numbers.
func parseNonNegativeInt(raw string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// parsePositiveInt accepts whole numbers greater than zero.
func parsePositiveInt(raw string) (int, bool) {
	value, ok := parseNonNegativeInt(raw)
	if !ok || value == 0 {
		return 0, false
	}
	return value, true
}

// parsePositiveFloat accepts decimal numbers greater than zero.
func parsePositiveFloat(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// parseSignedFloat accepts any non-zero decimal number, explicit sign
// allowed.
func parseSignedFloat(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return value, true
}

// parseDate accepts calendar dates in the canonical YYYY-MM-DD layout.
func parseDate(raw string) (time.Time, bool) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// withWarning prefixes a re-rendered prompt with a validation message so the
// operator can retry the same step without losing prior fields.
func withWarning(p Prompt, msg string) Prompt {
	p.Text = msg + "\n\n" + p.Text
	return p
}
