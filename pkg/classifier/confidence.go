package classifier

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

type confidenceKind int

const (
	confidenceText confidenceKind = iota + 1
	confidenceNumber
)

// Confidence is the raw confidence reported by the model: either text such
// as "87.5%" or a plain number such as 0.875
type Confidence struct {
	kind   confidenceKind
	text   string
	number float64
}

// TextConfidence wraps a percentage given as text
func TextConfidence(s string) Confidence {
	return Confidence{kind: confidenceText, text: s}
}

// NumberConfidence wraps a fraction given as a number
func NumberConfidence(f float64) Confidence {
	return Confidence{kind: confidenceNumber, number: f}
}

func confidenceFromJSON(v gjson.Result) (Confidence, error) {
	switch v.Type {
	case gjson.String:
		return TextConfidence(v.Str), nil
	case gjson.Number:
		return NumberConfidence(v.Num), nil
	default:
		return Confidence{}, formatError("Unsupported confidence value: %s", v.Raw)
	}
}

// Normalize converts the value to a fraction clamped to [0, 1] and rounded
// to 4 decimal places. Text is read as a percentage.
func (c Confidence) Normalize() (float64, error) {
	var value float64

	switch c.kind {
	case confidenceText:
		s := strings.TrimSpace(c.text)
		s = strings.TrimSpace(strings.TrimRight(s, "%"))

		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, formatError("Invalid confidence value: %q", c.text)
		}
		value = f / 100.0
	case confidenceNumber:
		value = c.number
	default:
		return 0, formatError("Missing confidence value")
	}

	if math.IsNaN(value) {
		return 0, formatError("Invalid confidence value: %v", value)
	}

	return roundConfidence(math.Max(0.0, math.Min(1.0, value))), nil
}

// roundConfidence rounds the exact binary value of f to 4 decimal places
func roundConfidence(f float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 4, 64), 64)
	return v
}
