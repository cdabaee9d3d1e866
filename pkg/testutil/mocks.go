package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// DefaultPrediction is what MockPredictor returns when PredictFunc is nil
const DefaultPrediction = `[{"label":"benign","confidence":"87.5%"}]`

// MockPredictor is a mock implementation of Predictor for testing
type MockPredictor struct {
	PredictFunc func(ctx context.Context, imagePath, apiName string) (json.RawMessage, error)

	mu            sync.Mutex
	CallCount     int
	LastImagePath string
	LastAPIName   string
}

func (m *MockPredictor) Predict(ctx context.Context, imagePath, apiName string) (json.RawMessage, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastImagePath = imagePath
	m.LastAPIName = apiName
	m.mu.Unlock()

	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, imagePath, apiName)
	}

	return json.RawMessage(DefaultPrediction), nil
}

// Calls returns the number of Predict calls so far
func (m *MockPredictor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Returning returns a MockPredictor that always answers with the given JSON
func Returning(prediction string) *MockPredictor {
	return &MockPredictor{
		PredictFunc: func(ctx context.Context, imagePath, apiName string) (json.RawMessage, error) {
			return json.RawMessage(prediction), nil
		},
	}
}

// TempImage writes a small placeholder image into a test temp dir
func TempImage(t testing.TB) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sample.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp image: %v", err)
	}
	return path
}
