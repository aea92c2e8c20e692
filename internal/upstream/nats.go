package upstream

import (
	"Go2NetClassifier/internal/config"
	"Go2NetClassifier/internal/model"
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"
)

// NATSSource subscribes to a NATS subject on which every message is one raw
// telemetry line, as published by a remote probe.
type NATSSource struct {
	cfg    config.NATSConfig
	log    logr.Logger
	stream *lineStream

	nc      *nats.Conn
	sub     *nats.Subscription
	msgs    chan *nats.Msg
	gone    chan struct{}
	goneOne sync.Once

	mu     sync.Mutex
	closed bool
}

// NewNATSSource creates a NATS telemetry source. The connection is made by Start.
func NewNATSSource(cfg config.NATSConfig, log logr.Logger) *NATSSource {
	return &NATSSource{
		cfg:    cfg,
		log:    log.WithName("nats-source"),
		stream: newLineStream(),
		msgs:   make(chan *nats.Msg, lineBufferSize),
		gone:   make(chan struct{}),
	}
}

// Start connects, subscribes and forwards message payloads as lines.
func (s *NATSSource) Start(ctx context.Context) (<-chan string, error) {
	nc, err := nats.Connect(s.cfg.URL, nats.ClosedHandler(func(*nats.Conn) {
		s.goneOne.Do(func() { close(s.gone) })
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", s.cfg.URL, err)
	}
	s.log.Info("Connected to NATS server", "url", s.cfg.URL)

	sub, err := nc.ChanSubscribe(s.cfg.Subject, s.msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", s.cfg.Subject, err)
	}
	s.nc, s.sub = nc, sub
	s.log.Info("Subscribed to telemetry subject", "subject", s.cfg.Subject)

	go s.forward(ctx)
	return s.stream.out, nil
}

func (s *NATSSource) forward(ctx context.Context) {
	for {
		select {
		case msg := <-s.msgs:
			if !s.stream.send(ctx, string(msg.Data)) {
				s.stream.finish(nil)
				return
			}
		case <-s.gone:
			s.stream.finish(s.closeError())
			return
		case <-s.stream.stop:
			s.stream.finish(nil)
			return
		case <-ctx.Done():
			s.stream.finish(nil)
			return
		}
	}
}

func (s *NATSSource) closeError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.nc.LastError(); err != nil {
		return fmt.Errorf("%w: NATS connection closed: %v", model.ErrUpstreamTerminated, err)
	}
	return fmt.Errorf("%w: NATS connection closed", model.ErrUpstreamTerminated)
}

// Close unsubscribes and closes the NATS connection.
func (s *NATSSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stream.halt()
	var err error
	if s.sub != nil {
		err = s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		s.log.Info("NATS connection closed")
	}
	return err
}

// Err reports an unexpected connection loss once the channel is closed.
func (s *NATSSource) Err() error {
	return s.stream.err
}
