package classifier

import (
	"Go2NetClassifier/internal/model"
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Centroid is the mean feature vector of one traffic class.
type Centroid struct {
	Label    string    `yaml:"label"`
	Features []float64 `yaml:"features"`
}

// CentroidFile is the on-disk layout of a nearest-centroid model.
type CentroidFile struct {
	Centroids []Centroid `yaml:"centroids"`
}

// CentroidClassifier assigns a flow to the class whose centroid is nearest in
// Euclidean distance.
type CentroidClassifier struct {
	classes   []int
	centroids []model.FeatureVector
}

// LoadCentroids reads a nearest-centroid model from a YAML file.
func LoadCentroids(path string) (*CentroidClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read centroid file: %w", err)
	}
	var file CentroidFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal centroid YAML: %w", err)
	}
	return NewCentroidClassifier(file.Centroids)
}

// NewCentroidClassifier validates centroids against the label map and feature length.
func NewCentroidClassifier(centroids []Centroid) (*CentroidClassifier, error) {
	if len(centroids) == 0 {
		return nil, fmt.Errorf("no centroids defined")
	}
	c := &CentroidClassifier{}
	for _, cen := range centroids {
		idx := indexOf(cen.Label)
		if idx < 0 {
			return nil, fmt.Errorf("unknown traffic type %q", cen.Label)
		}
		if len(cen.Features) != model.FeatureLen {
			return nil, fmt.Errorf("centroid %q has %d features, want %d", cen.Label, len(cen.Features), model.FeatureLen)
		}
		var v model.FeatureVector
		copy(v[:], cen.Features)
		c.classes = append(c.classes, idx)
		c.centroids = append(c.centroids, v)
	}
	return c, nil
}

// Classify returns the class index of the nearest centroid.
func (c *CentroidClassifier) Classify(_ context.Context, features model.FeatureVector) (int, error) {
	best, bestDist := -1, math.Inf(1)
	for i, cen := range c.centroids {
		var d float64
		for j := range cen {
			diff := features[j] - cen[j]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: no finite distance to any centroid", model.ErrClassifierUnavailable)
	}
	return c.classes[best], nil
}

func indexOf(label string) int {
	for i, l := range Labels {
		if l == label {
			return i
		}
	}
	return -1
}
