package gradio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// UploadFile sends the file at path to the app and returns a reference
// that can be passed to Predict
func (c *Client) UploadFile(ctx context.Context, path string) (*FileData, error) {
	if c.rootURL == "" {
		return nil, ErrNotConnected
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	name := filepath.Base(path)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("files", name)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, err := c.do(req, "upload")
	if err != nil {
		return nil, err
	}

	paths := gjson.ParseBytes(body)
	if !paths.IsArray() || len(paths.Array()) == 0 {
		return nil, &APIError{
			Message: "gradio upload returned no file paths",
			RawBody: body,
		}
	}

	fd := &FileData{
		Path:     paths.Array()[0].String(),
		OrigName: name,
		Size:     info.Size(),
		MimeType: mime.TypeByExtension(filepath.Ext(name)),
		Meta:     FileMeta{Type: fileDataType},
	}

	c.logger().WithField("path", fd.Path).Debug("Uploaded file")

	return fd, nil
}
