package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid_amount")

// ParseCents parses a monetary string into integer cents. The wire
// format uses comma-as-decimal locale formatting: "1.234,56" means
// 1234.56. Plain dot-decimal input ("1234.56") is accepted too, so API
// clients and seeded fixtures can use either.
func ParseCents(raw string) (int64, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, ErrInvalidAmount
	}

	if strings.Contains(text, ",") {
		text = strings.ReplaceAll(text, ".", "")
		text = strings.Replace(text, ",", ".", 1)
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidAmount
	}
	return int64(math.Round(value * 100)), nil
}

// FormatCents renders cents in the comma-decimal format used on output
// boundaries, e.g. 123456 -> "1.234,56".
func FormatCents(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	out := fmt.Sprintf("%s,%02d", grouped.String(), frac)
	if negative {
		return "-" + out
	}
	return out
}

// ToFloat converts cents into the normalized float representation used
// by the analytics engine.
func ToFloat(cents int64) float64 {
	return float64(cents) / 100
}

// FromFloat rounds a float amount to cents.
func FromFloat(value float64) int64 {
	return int64(math.Round(value * 100))
}
