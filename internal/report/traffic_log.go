package report

import (
	"Go2NetClassifier/internal/model"
	"bufio"
	"context"
	"fmt"
	"os"
)

// TrafficLog appends flowId, srcAddr, dstAddr and label of every classified flow
// to a tab-separated file.
type TrafficLog struct {
	file *os.File
	buf  *bufio.Writer
}

// OpenTrafficLog opens path for appending, creating it if needed.
func OpenTrafficLog(path string) (*TrafficLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open traffic log %q: %w", path, err)
	}
	return &TrafficLog{file: f, buf: bufio.NewWriter(f)}, nil
}

// Report appends one line per flow and flushes at the end of the cycle.
func (l *TrafficLog) Report(_ context.Context, results []model.Classification) error {
	for _, c := range results {
		if _, err := fmt.Fprintf(l.buf, "%d\t%s\t%s\t%s\n", c.FlowID, c.SrcAddr, c.DstAddr, c.Label); err != nil {
			return fmt.Errorf("failed to write traffic log: %w", err)
		}
	}
	return l.buf.Flush()
}

// Close flushes and closes the file.
func (l *TrafficLog) Close() error {
	if err := l.buf.Flush(); err != nil {
		l.file.Close()
		return fmt.Errorf("failed to flush traffic log: %w", err)
	}
	return l.file.Close()
}
