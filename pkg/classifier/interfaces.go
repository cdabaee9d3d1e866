package classifier

import (
	"context"
	"encoding/json"
)

// Predictor runs the remote model on a local image. The returned value is
// the raw JSON array of the endpoint's outputs.
type Predictor interface {
	Predict(ctx context.Context, imagePath, apiName string) (json.RawMessage, error)
}
