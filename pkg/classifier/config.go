package classifier

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultEndpoint is the hosted space serving the model
	DefaultEndpoint = "chandruganesh00/patholens-ai"

	// DefaultAPIName is the remote operation invoked on the space
	DefaultAPIName = "/classify_image"

	// DefaultTimeout bounds every request made for a single attempt
	DefaultTimeout = 120 * time.Second

	// DefaultMaxAttempts is the total number of attempts, including the first
	DefaultMaxAttempts = 2
)

// Config holds configuration for the Classifier
type Config struct {
	// Predictor performs the remote call. If nil, uses the Gradio space at Endpoint.
	Predictor Predictor

	Endpoint string
	APIName  string
	HFToken  *string // Optional. If nil, HF_TOKEN is read from the environment.
	Timeout  time.Duration

	// MaxAttempts is the total number of attempts. If 0, uses DefaultMaxAttempts.
	MaxAttempts int

	// RetryDelay is the pause before each retry. Zero retries immediately.
	RetryDelay time.Duration

	// Logger receives debug output. If nil, logs are discarded.
	Logger logrus.FieldLogger
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}

	if c.APIName == "" {
		c.APIName = DefaultAPIName
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		c.Logger = logger
	}
}
