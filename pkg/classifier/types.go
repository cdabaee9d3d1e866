package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Values of the "status" field
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of one classification: either a label with its
// confidence, or an error message. It is immutable once built.
type Result struct {
	status     string
	label      string
	confidence float64
	message    string
}

// Success builds a successful result. confidence is expected to be normalized.
func Success(label string, confidence float64) Result {
	return Result{status: StatusSuccess, label: label, confidence: confidence}
}

// Failure builds an error result
func Failure(message string) Result {
	return Result{status: StatusError, message: message}
}

// FromError renders err as an error result, prefixed according to its kind
func FromError(err error) Result {
	switch KindOf(err) {
	case KindUsage:
		var u *UsageError
		if errors.As(err, &u) {
			return Failure(fmt.Sprintf("Usage: %s <image_path>", u.Program))
		}
		return Failure(err.Error())
	case KindPath:
		return Failure("Image file error: " + err.Error())
	default:
		return Failure("Classification failed: " + err.Error())
	}
}

// Status returns StatusSuccess or StatusError
func (r Result) Status() string { return r.status }

// OK reports whether the classification succeeded
func (r Result) OK() bool { return r.status == StatusSuccess }

// Label returns the predicted label, empty for an error result
func (r Result) Label() string { return r.label }

// Confidence returns the normalized confidence, zero for an error result
func (r Result) Confidence() float64 { return r.confidence }

// Message returns the error message, empty for a success result
func (r Result) Message() string { return r.message }

type resultData struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type successPayload struct {
	Status string     `json:"status"`
	Data   resultData `json:"data"`
}

type errorPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (r Result) payload() any {
	if r.OK() {
		return successPayload{
			Status: r.status,
			Data:   resultData{Label: r.label, Confidence: r.confidence},
		}
	}
	return errorPayload{Status: StatusError, Message: r.message}
}

// MarshalJSON implements json.Marshaler
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.payload())
}

// JSON renders the result as a single compact line, without HTML escaping
func (r Result) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.payload()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
