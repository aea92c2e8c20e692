package report

import (
	"Go2NetClassifier/internal/model"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

var tableHeader = []string{"FlowID", "SrcAddr", "DstAddr", "TrafficType", "ForwardStatus", "ReverseStatus"}

// TableRenderer prints each reporting cycle as an aligned table.
type TableRenderer struct {
	w io.Writer
}

// NewTableRenderer creates a renderer writing to w.
func NewTableRenderer(w io.Writer) *TableRenderer {
	return &TableRenderer{w: w}
}

// Report renders one table for the cycle.
func (r *TableRenderer) Report(_ context.Context, results []model.Classification) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', tabwriter.Debug)
	fmt.Fprintln(tw, strings.Join(tableHeader, "\t")+"\t")
	rule := make([]string, len(tableHeader))
	for i, h := range tableHeader {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t")+"\t")
	for _, c := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			c.FlowID, c.SrcAddr, c.DstAddr, c.Label, c.ForwardStatus, c.ReverseStatus)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// Close is a no-op; the renderer does not own its writer.
func (r *TableRenderer) Close() error { return nil }
