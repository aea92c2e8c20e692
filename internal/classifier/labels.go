package classifier

import (
	"Go2NetClassifier/internal/model"
	"context"
	"fmt"
)

// Labels maps class indices to traffic types. The order is shared with the model.
var Labels = [...]string{
	0: "Voice",
	1: "DNS",
	2: "Video",
	3: "Ping",
	4: "Game",
	5: "quake3",
	6: "Telnet",
}

// Label returns the traffic type of a class index.
func Label(idx int) (string, error) {
	if idx < 0 || idx >= len(Labels) {
		return "", fmt.Errorf("%w: class index %d out of range [0, %d]", model.ErrClassifierUnavailable, idx, len(Labels)-1)
	}
	return Labels[idx], nil
}

// Func adapts an ordinary function to model.Classifier.
type Func func(ctx context.Context, features model.FeatureVector) (int, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, features model.FeatureVector) (int, error) {
	return f(ctx, features)
}
