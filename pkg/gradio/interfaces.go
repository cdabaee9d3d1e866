package gradio

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// DefaultHubURL is where space identifiers are resolved to their hosts
const DefaultHubURL = "https://huggingface.co"

const fileDataType = "gradio.FileData"

// Client is a minimal client for the Gradio REST API of a single app.
// Connect must be called before Upload or Predict.
type Client struct {
	// Space is either an "owner/name" identifier or the app's root URL
	Space      string
	Token      string
	HubURL     string
	HTTPClient *http.Client
	Logger     logrus.FieldLogger

	rootURL   string
	apiPrefix string
	version   string
}

// FileData references a file that was uploaded to the app
type FileData struct {
	Path     string   `json:"path"`
	URL      string   `json:"url,omitempty"`
	OrigName string   `json:"orig_name,omitempty"`
	Size     int64    `json:"size,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`
	Meta     FileMeta `json:"meta"`
}

type FileMeta struct {
	Type string `json:"_type"`
}

type callRequest struct {
	Data        []any  `json:"data"`
	SessionHash string `json:"session_hash,omitempty"`
}

// APIError wraps a failed response from the app or the hub
type APIError struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	RawBody    json.RawMessage `json:"raw_body,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// GetRawResponseBody returns the raw response body if available
func (e *APIError) GetRawResponseBody() json.RawMessage {
	return e.RawBody
}
