package training

import (
	"Go2NetClassifier/internal/model"
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Header names the 17 columns of a training file: 16 features and the traffic type.
var Header = []string{
	"Forward Packets",
	"Forward Bytes",
	"Delta Forward Packets",
	"Delta Forward Bytes",
	"Forward Instantaneous Packets per Second",
	"Forward Average Packets per second",
	"Forward Instantaneous Bytes per Second",
	"Forward Average Bytes per second",
	"Reverse Packets",
	"Reverse Bytes",
	"Delta Reverse Packets",
	"Delta Reverse Bytes",
	"DeltaReverse Instantaneous Packets per Second",
	"Reverse Average Packets per second",
	"Reverse Instantaneous Bytes per Second",
	"Reverse Average Bytes per second",
	"Traffic Type",
}

// TSVWriter writes labelled training rows to a tab-separated file.
type TSVWriter struct {
	file *os.File
	buf  *bufio.Writer
}

// CreateTSV truncates or creates path and writes the header.
func CreateTSV(path string) (*TSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create training file %q: %w", path, err)
	}
	w := &TSVWriter{file: f, buf: bufio.NewWriter(f)}
	if _, err := w.buf.WriteString(strings.Join(Header, "\t") + "\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write training header: %w", err)
	}
	return w, nil
}

// WriteRow appends one row.
func (w *TSVWriter) WriteRow(row model.TrainingRow) error {
	if _, err := w.buf.WriteString(FormatRow(row) + "\n"); err != nil {
		return fmt.Errorf("failed to write training row: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *TSVWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush training file: %w", err)
	}
	return w.file.Close()
}

// FormatRow renders a row in Header column order.
func FormatRow(row model.TrainingRow) string {
	f := row.Features
	cols := []string{
		strconv.FormatInt(row.ForwardPackets, 10),
		strconv.FormatInt(row.ForwardBytes, 10),
		formatCount(f[0]),
		formatCount(f[1]),
		formatRate(f[2]),
		formatRate(f[3]),
		formatRate(f[4]),
		formatRate(f[5]),
		strconv.FormatInt(row.ReversePackets, 10),
		strconv.FormatInt(row.ReverseBytes, 10),
		formatCount(f[6]),
		formatCount(f[7]),
		formatRate(f[8]),
		formatRate(f[9]),
		formatRate(f[10]),
		formatRate(f[11]),
		row.Label,
	}
	return strings.Join(cols, "\t")
}

func formatCount(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
