package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/FrenchMajesty/patholens/pkg/gradio"
	"github.com/sirupsen/logrus"
)

// GradioPredictor runs predictions against a Gradio space. Every call opens
// its own client, so no connection or session outlives a single attempt.
type GradioPredictor struct {
	space   string
	token   string
	timeout time.Duration
	hubURL  string
	logger  logrus.FieldLogger
}

// NewGradioPredictor creates a predictor for the given space. If token is
// nil, HF_TOKEN is used when set; anonymous access otherwise.
func NewGradioPredictor(space string, token *string, timeout time.Duration, logger logrus.FieldLogger) (*GradioPredictor, error) {
	if err := gradio.ValidateSpace(space); err != nil {
		return nil, err
	}

	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &GradioPredictor{
		space:   space,
		token:   optionalEnvVar(token, "HF_TOKEN"),
		timeout: timeout,
		hubURL:  gradio.DefaultHubURL,
		logger:  logger,
	}, nil
}

// SetHubURL changes where space identifiers are resolved
func (p *GradioPredictor) SetHubURL(hubURL string) {
	p.hubURL = hubURL
}

// Predict implements the classifier's Predictor interface
func (p *GradioPredictor) Predict(ctx context.Context, imagePath, apiName string) (json.RawMessage, error) {
	client := gradio.NewClient(p.space, p.token, p.timeout)
	client.HubURL = p.hubURL
	client.Logger = p.logger.WithField("space", p.space)

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	file, err := client.UploadFile(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	return client.Predict(ctx, apiName, file)
}

// optionalEnvVar returns *target if set, else the environment value of envKey
func optionalEnvVar(target *string, envKey string) string {
	if target != nil {
		return *target
	}
	return os.Getenv(envKey)
}
