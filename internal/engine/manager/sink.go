package manager

import (
	"Go2NetClassifier/internal/model"
	"errors"
)

// Sink selects what the dispatch loop does with updated flows. It is either a
// *TrainingSink or a *ClassifierSink.
type Sink interface {
	sink()
}

// TrainingSink writes labelled feature rows on every record.
type TrainingSink struct {
	Writer model.TrainingWriter
	Label  string
	// AllFlows writes a row for every flow instead of only the one the record updated.
	AllFlows bool
}

// ClassifierSink classifies every flow each Cadence records and hands the results
// to the reporters.
type ClassifierSink struct {
	Classifier model.Classifier
	Reporters  []model.Reporter
	Cadence    int
}

func (*TrainingSink) sink()   {}
func (*ClassifierSink) sink() {}

// DefaultCadence is the record interval between classification cycles.
const DefaultCadence = 10

func validateSink(s Sink) error {
	switch s := s.(type) {
	case *TrainingSink:
		if s == nil || s.Writer == nil {
			return errors.New("training sink needs a writer")
		}
		if s.Label == "" {
			return errors.New("training sink needs a traffic type label")
		}
	case *ClassifierSink:
		if s == nil || s.Classifier == nil {
			return errors.New("classifier sink needs a classifier")
		}
		if s.Cadence <= 0 {
			s.Cadence = DefaultCadence
		}
	default:
		return errors.New("no sink configured")
	}
	return nil
}
