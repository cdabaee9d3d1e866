package gradio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Outputs of image models can be large; a single data line may hold all of them.
const maxEventSize = 16 << 20

const unverboseAppError = "The upstream Gradio app has raised an exception but has not enabled verbose error reporting. To enable, set show_error=True in launch()."

// ErrNoResult is returned when the stream ends without a complete or error event
var ErrNoResult = errors.New("gradio event stream ended without a result")

type event struct {
	name string
	data string
}

type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &eventReader{scanner: scanner}
}

// next returns the next dispatched event, or io.EOF
func (er *eventReader) next() (*event, error) {
	var ev event
	var data []string
	pending := false

	for er.scanner.Scan() {
		line := er.scanner.Text()

		if line == "" {
			if pending {
				ev.data = strings.Join(data, "\n")
				return &ev, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.name = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}

	if err := er.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}

	if pending {
		ev.data = strings.Join(data, "\n")
		return &ev, nil
	}

	return nil, io.EOF
}

// readResult consumes the stream until the call completes or fails
func readResult(r io.Reader, logger logrus.FieldLogger) (json.RawMessage, error) {
	er := newEventReader(r)

	for {
		ev, err := er.next()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoResult
		}
		if err != nil {
			return nil, err
		}

		switch ev.name {
		case "complete":
			if !gjson.Valid(ev.data) {
				return nil, &APIError{
					Message: "gradio result is not valid JSON",
					RawBody: json.RawMessage(ev.data),
				}
			}
			return json.RawMessage(ev.data), nil
		case "error":
			return nil, eventError(ev.data)
		default:
			logger.WithField("event", ev.name).Debug("Skipping stream event")
		}
	}
}

func eventError(data string) error {
	msg := unverboseAppError

	v := gjson.Parse(data)
	switch {
	case data == "" || v.Type == gjson.Null:
	case v.Type == gjson.String:
		if v.Str != "" {
			msg = v.Str
		}
	default:
		msg = data
	}

	return &APIError{
		Message: msg,
		RawBody: json.RawMessage(data),
	}
}
