package model

import (
	"context"
)

// Source delivers raw telemetry lines from an upstream producer.
type Source interface {
	// Start launches the producer. The returned channel is closed at end-of-stream.
	Start(ctx context.Context) (<-chan string, error)

	// Close releases the producer. It must be safe to call more than once.
	Close() error

	// Err reports why the stream ended once the channel is closed. A nil result means
	// a normal end-of-stream.
	Err() error
}

// Classifier maps a feature vector to a class index in [0, 6].
type Classifier interface {
	Classify(ctx context.Context, features FeatureVector) (int, error)
}

// Reporter receives the classifications of one reporting cycle.
type Reporter interface {
	Report(ctx context.Context, results []Classification) error
	Close() error
}

// TrainingRow is one labelled line of training data: cumulative counters and rate
// features of both directions followed by the traffic type.
type TrainingRow struct {
	ForwardPackets int64
	ForwardBytes   int64
	ReversePackets int64
	ReverseBytes   int64
	Features       FeatureVector
	Label          string
}

// TrainingWriter persists labelled training rows.
type TrainingWriter interface {
	WriteRow(row TrainingRow) error
	Close() error
}
