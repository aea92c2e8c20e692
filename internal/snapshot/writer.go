package snapshot

import (
	"Go2NetClassifier/internal/engine/manager"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	flowsFile   = "flows.gob"
	summaryFile = "summary.json"
)

// SummaryData holds the metadata for a snapshot.
type SummaryData struct {
	TotalFlows int            `json:"total_flows"`
	Records    uint64         `json:"records"`
	Taken      string         `json:"taken"`
	Labels     map[string]int `json:"labels,omitempty"`
}

// Writer dumps flow table snapshots to disk.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Write stores snap under a timestamped directory: the flows gob-encoded and a JSON
// summary next to them. It returns the directory.
func (w *Writer) Write(snap *manager.Snapshot) (string, error) {
	dir := filepath.Join(w.root, snap.Taken.UTC().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if err := writeFile(filepath.Join(dir, flowsFile), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(snap.Flows)
	}); err != nil {
		return "", fmt.Errorf("failed to encode flows to gob: %w", err)
	}

	summary := SummaryData{
		TotalFlows: len(snap.Flows),
		Records:    snap.Records,
		Taken:      snap.Taken.UTC().Format(time.RFC3339),
	}
	for _, f := range snap.Flows {
		if f.Label == "" {
			continue
		}
		if summary.Labels == nil {
			summary.Labels = make(map[string]int)
		}
		summary.Labels[f.Label]++
	}
	if err := writeFile(filepath.Join(dir, summaryFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}); err != nil {
		return "", fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return dir, nil
}

// Read loads the flows of a snapshot directory written by Write.
func Read(dir string) ([]manager.FlowSnapshot, error) {
	f, err := os.Open(filepath.Join(dir, flowsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var flows []manager.FlowSnapshot
	if err := gob.NewDecoder(f).Decode(&flows); err != nil {
		return nil, fmt.Errorf("failed to decode flows: %w", err)
	}
	return flows, nil
}

func writeFile(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
