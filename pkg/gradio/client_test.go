package gradio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeApp emulates the parts of a Gradio 5 app the client talks to
type fakeApp struct {
	t         *testing.T
	prefix    string
	stream    string
	token     string
	callCount atomic.Int32
	lastCall  callRequest
	uploaded  string
}

func (a *fakeApp) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":"5.9.1","api_prefix":%q}`, a.prefix)
	})

	mux.HandleFunc(a.prefix+"/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(a.t, http.MethodPost, r.Method)
		if a.token != "" {
			assert.Equal(a.t, "Bearer "+a.token, r.Header.Get("Authorization"))
		}

		file, header, err := r.FormFile("files")
		require.NoError(a.t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(a.t, err)
		a.uploaded = string(content)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `["/tmp/gradio/abc/%s"]`, header.Filename)
	})

	mux.HandleFunc(a.prefix+"/call/classify_image", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(a.t, http.MethodPost, r.Method)
		assert.Equal(a.t, "application/json", r.Header.Get("Content-Type"))

		a.callCount.Add(1)
		require.NoError(a.t, json.NewDecoder(r.Body).Decode(&a.lastCall))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"event_id":"evt-1"}`)
	})

	mux.HandleFunc(a.prefix+"/call/classify_image/evt-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(a.t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, a.stream)
	})

	return mux
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slide.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o644))
	return path
}

func TestClient_Predict_Success(t *testing.T) {
	app := &fakeApp{
		t:      t,
		prefix: "/gradio_api",
		token:  "hf_test",
		stream: "event: generating\ndata: null\n\nevent: complete\ndata: [{\"label\":\"benign\",\"confidence\":\"87.5%\"}]\n\n",
	}
	server := httptest.NewServer(app.handler())
	defer server.Close()

	client := NewClient(server.URL, "hf_test", 5*time.Second)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	assert.Equal(t, server.URL, client.RootURL())
	assert.Equal(t, "5.9.1", client.Version())

	image := writeImage(t)
	file, err := client.UploadFile(ctx, image)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/gradio/abc/slide.png", file.Path)
	assert.Equal(t, "slide.png", file.OrigName)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, fileDataType, file.Meta.Type)
	assert.Equal(t, "\x89PNG fake", app.uploaded)

	out, err := client.Predict(ctx, "/classify_image", file)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"label":"benign","confidence":"87.5%"}]`, string(out))

	assert.Equal(t, int32(1), app.callCount.Load())
	assert.NotEmpty(t, app.lastCall.SessionHash)
	require.Len(t, app.lastCall.Data, 1)
	sent, ok := app.lastCall.Data[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/tmp/gradio/abc/slide.png", sent["path"])
	assert.Equal(t, map[string]any{"_type": "gradio.FileData"}, sent["meta"])
}

func TestClient_Predict_WithoutPrefix(t *testing.T) {
	app := &fakeApp{
		t:      t,
		stream: "event: complete\ndata: [\"cat\", {\"label\":\"x\",\"confidence\":0.5}]\n\n",
	}
	server := httptest.NewServer(app.handler())
	defer server.Close()

	client := NewClient(server.URL+"/", "", 5*time.Second)
	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, server.URL, client.RootURL())

	out, err := client.Predict(context.Background(), "classify_image")
	require.NoError(t, err)
	assert.JSONEq(t, `["cat", {"label":"x","confidence":0.5}]`, string(out))
	assert.Empty(t, app.lastCall.Data)
}

func TestClient_Predict_ErrorEvent(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		wantMsg string
	}{
		{
			name:    "null payload",
			stream:  "event: error\ndata: null\n\n",
			wantMsg: unverboseAppError,
		},
		{
			name:    "string payload",
			stream:  "event: error\ndata: \"CUDA out of memory\"\n\n",
			wantMsg: "CUDA out of memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &fakeApp{t: t, prefix: "/gradio_api", stream: tt.stream}
			server := httptest.NewServer(app.handler())
			defer server.Close()

			client := NewClient(server.URL, "", 5*time.Second)
			require.NoError(t, client.Connect(context.Background()))

			_, err := client.Predict(context.Background(), "/classify_image")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestClient_Predict_StreamWithoutResult(t *testing.T) {
	app := &fakeApp{t: t, prefix: "/gradio_api", stream: "event: heartbeat\ndata: null\n\n"}
	server := httptest.NewServer(app.handler())
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	require.NoError(t, client.Connect(context.Background()))

	_, err := client.Predict(context.Background(), "/classify_image")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestClient_Predict_NotConnected(t *testing.T) {
	client := NewClient("owner/space", "", time.Second)

	_, err := client.Predict(context.Background(), "/classify_image")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.UploadFile(context.Background(), "whatever.png")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_Connect_ResolvesSpaceThroughHub(t *testing.T) {
	app := &fakeApp{t: t, prefix: "/gradio_api"}
	appServer := httptest.NewServer(app.handler())
	defer appServer.Close()

	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/spaces/chandruganesh00/patholens-ai/host", r.URL.Path)
		assert.Equal(t, "Bearer hf_secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"subdomain":"chandruganesh00-patholens-ai","host":%q}`, appServer.URL)
	}))
	defer hub.Close()

	client := NewClient("chandruganesh00/patholens-ai", "hf_secret", 5*time.Second)
	client.HubURL = hub.URL

	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, appServer.URL, client.RootURL())
	assert.Equal(t, appServer.URL+"/gradio_api/call/classify_image", client.endpoint("call", "classify_image"))
}

func TestClient_Connect_SpaceNotFound(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"Repository not found"}`)
	}))
	defer hub.Close()

	client := NewClient("nobody/missing", "", 5*time.Second)
	client.HubURL = hub.URL

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not resolve space nobody/missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, string(apiErr.GetRawResponseBody()), "Repository not found")
}

func TestClient_Connect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	err := client.Connect(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "gradio config API error 503", apiErr.Error())
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 20*time.Millisecond)
	err := client.Connect(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestValidateSpace(t *testing.T) {
	tests := []struct {
		space   string
		wantErr bool
	}{
		{"chandruganesh00/patholens-ai", false},
		{"https://chandruganesh00-patholens-ai.hf.space", false},
		{"http://localhost:7860/", false},
		{"", true},
		{"patholens-ai", true},
		{"/patholens-ai", true},
		{"owner/", true},
		{"a/b/c", true},
		{"https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.space, func(t *testing.T) {
			err := ValidateSpace(tt.space)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "", normalizePrefix("/"))
	assert.Equal(t, "/gradio_api", normalizePrefix("/gradio_api"))
	assert.Equal(t, "/gradio_api", normalizePrefix("gradio_api/"))
}

func TestEventReader(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"event: generating",
		"data: [1]",
		"",
		"",
		"event: complete",
		"data: [1,",
		"data: 2]",
		"",
		"event: trailing",
		"data: x",
	}, "\n")

	er := newEventReader(strings.NewReader(stream))

	ev, err := er.next()
	require.NoError(t, err)
	assert.Equal(t, "generating", ev.name)
	assert.Equal(t, "[1]", ev.data)

	ev, err = er.next()
	require.NoError(t, err)
	assert.Equal(t, "complete", ev.name)
	assert.Equal(t, "[1,\n2]", ev.data)

	ev, err = er.next()
	require.NoError(t, err)
	assert.Equal(t, "trailing", ev.name)

	_, err = er.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadResult_InvalidJSON(t *testing.T) {
	_, err := readResult(strings.NewReader("event: complete\ndata: {oops\n\n"), discardLogger())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "not valid JSON")
}
