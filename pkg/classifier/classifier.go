package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/FrenchMajesty/patholens/internal/retry"
	"github.com/FrenchMajesty/patholens/pkg/adapters"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var _ Predictor = (*adapters.GradioPredictor)(nil)

// Classifier sends images to a remote model and normalizes its answer
type Classifier struct {
	predictor Predictor
	apiName   string
	retry     retry.Config
	logger    logrus.FieldLogger
}

// NewClassifier creates a new Classifier with the given configuration
func NewClassifier(cfg Config) (*Classifier, error) {
	cfg.applyDefaults()

	var predictor Predictor
	if cfg.Predictor != nil {
		predictor = cfg.Predictor
	} else {
		p, err := adapters.NewGradioPredictor(cfg.Endpoint, cfg.HFToken, cfg.Timeout, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create default predictor: %w", err)
		}
		predictor = p
	}

	return &Classifier{
		predictor: predictor,
		apiName:   cfg.APIName,
		retry: retry.Config{
			MaxRetries:      cfg.MaxAttempts - 1,
			BaseDelay:       cfg.RetryDelay,
			BackoffMultiple: 1.0,
		},
		logger: cfg.Logger,
	}, nil
}

// Classify classifies the image at imagePath. It never fails: every error is
// reported through the returned Result.
func (c *Classifier) Classify(ctx context.Context, imagePath string) Result {
	log := c.logger.WithField("image", imagePath)

	if err := validateImagePath(imagePath); err != nil {
		log.WithError(err).Debug("Rejected image path")
		return FromError(err)
	}

	opts := retry.Options{
		Config:       c.retry,
		ErrorChecker: isRetryable,
		Logger:       log.Debugf,
		APIName:      "Gradio " + c.apiName,
	}

	result, err := retry.Execute(ctx, opts, func(attempt int) (Result, error) {
		return c.attempt(ctx, imagePath)
	})
	if err != nil {
		var exhausted *retry.RetryExhaustedError
		if errors.As(err, &exhausted) {
			return Failure("Classification failed after all retry attempts")
		}

		log.WithField("kind", KindOf(err)).WithError(err).Debug("Classification failed")
		return FromError(err)
	}

	log.WithFields(logrus.Fields{
		"label":      result.Label(),
		"confidence": result.Confidence(),
	}).Debug("Classified image")

	return result
}

func (c *Classifier) attempt(ctx context.Context, imagePath string) (Result, error) {
	raw, err := c.predictor.Predict(ctx, imagePath, c.apiName)
	if err != nil {
		return Result{}, transientError(err)
	}

	return parsePrediction(raw)
}

// validateImagePath checks that path names a readable regular file
func validateImagePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pathError("Image file not found: %s", path)
		}
		return pathError("Image file not accessible: %s", path)
	}

	if !info.Mode().IsRegular() {
		return pathError("Path is not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return pathError("Image file not readable: %s", path)
	}
	f.Close()

	return nil
}

// parsePrediction reads the label and confidence from the last output
func parsePrediction(raw json.RawMessage) (Result, error) {
	if !gjson.ValidBytes(raw) {
		return Result{}, formatError("Invalid JSON in API response")
	}

	outputs := gjson.ParseBytes(raw)
	if !outputs.IsArray() {
		return Result{}, formatError("Unexpected response format: %s", jsonKind(outputs))
	}

	items := outputs.Array()
	if len(items) == 0 {
		return Result{}, formatError("Empty result from Gradio API")
	}

	output := items[len(items)-1]
	if !output.IsObject() {
		return Result{}, formatError("Unexpected output format: %s", jsonKind(output))
	}

	label := output.Get("label")
	rawConfidence := output.Get("confidence")
	if !label.Exists() || !rawConfidence.Exists() {
		return Result{}, formatError("Missing required fields in API response")
	}

	confidence, err := confidenceFromJSON(rawConfidence)
	if err != nil {
		return Result{}, err
	}

	value, err := confidence.Normalize()
	if err != nil {
		return Result{}, err
	}

	return Success(labelText(label), value), nil
}

func labelText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return v.Raw
}

func jsonKind(v gjson.Result) string {
	switch {
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	case v.Type == gjson.String:
		return "string"
	case v.Type == gjson.Number:
		return "number"
	case v.Type == gjson.True, v.Type == gjson.False:
		return "boolean"
	default:
		return "null"
	}
}
