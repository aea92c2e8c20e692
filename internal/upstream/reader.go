package upstream

import (
	"Go2NetClassifier/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
)

// ReaderSource reads telemetry lines from an io.Reader such as stdin or a file.
type ReaderSource struct {
	r      io.Reader
	stream *lineStream
}

// NewReaderSource creates a source over r. If r is an io.Closer it is closed by Close.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, stream: newLineStream()}
}

// Start begins reading in the background.
func (s *ReaderSource) Start(ctx context.Context) (<-chan string, error) {
	go func() {
		err := s.stream.pump(ctx, s.r)
		if err != nil && !errors.Is(err, io.EOF) && !s.stream.stopped() {
			err = fmt.Errorf("%w: read telemetry: %v", model.ErrUpstreamTerminated, err)
		} else {
			err = nil
		}
		s.stream.finish(err)
	}()
	return s.stream.out, nil
}

// Close stops delivery and closes the reader when it is closable.
func (s *ReaderSource) Close() error {
	s.stream.halt()
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Err reports a read failure once the channel is closed.
func (s *ReaderSource) Err() error {
	return s.stream.err
}
