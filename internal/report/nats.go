package report

import (
	"Go2NetClassifier/internal/config"
	"Go2NetClassifier/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// NATSPublisher publishes every reporting cycle to a NATS subject as a protobuf
// encoded google.protobuf.Struct.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	log     logr.Logger
}

// NewNATSPublisher connects to the NATS server.
func NewNATSPublisher(cfg config.NATSConfig, log logr.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log = log.WithName("nats-report")
	log.Info("Connected to NATS server", "url", cfg.URL, "subject", cfg.Subject)
	return &NATSPublisher{nc: nc, subject: cfg.Subject, log: log}, nil
}

// Report serializes the cycle and publishes it.
func (p *NATSPublisher) Report(_ context.Context, results []model.Classification) error {
	data, err := EncodeCycle(time.Now(), results)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	p.log.Info("NATS connection drained and closed")
	return nil
}

// EncodeCycle builds the wire form of one reporting cycle.
func EncodeCycle(at time.Time, results []model.Classification) ([]byte, error) {
	flows := make([]any, len(results))
	for i, c := range results {
		features := make([]any, len(c.Features))
		for j, v := range c.Features {
			features[j] = v
		}
		flows[i] = map[string]any{
			"flow_id":        c.FlowID,
			"switch_id":      c.SwitchID,
			"src_addr":       c.SrcAddr,
			"dst_addr":       c.DstAddr,
			"traffic_type":   c.Label,
			"forward_status": c.ForwardStatus.String(),
			"reverse_status": c.ReverseStatus.String(),
			"features":       features,
		}
	}

	msg, err := structpb.NewStruct(map[string]any{
		"timestamp": at.UTC().Format(time.RFC3339Nano),
		"flows":     flows,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report message: %w", err)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report message: %w", err)
	}
	return data, nil
}
