package upstream

import (
	"Go2NetClassifier/internal/model"
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

const (
	lineBufferSize = 256
	readBufferSize = 64 * 1024
)

// lineStream carries lines from a producer goroutine to the dispatch loop.
type lineStream struct {
	out      chan string
	stop     chan struct{}
	stopOnce sync.Once
	err      error
}

func newLineStream() *lineStream {
	return &lineStream{
		out:  make(chan string, lineBufferSize),
		stop: make(chan struct{}),
	}
}

// send delivers one line unless the stream was stopped or ctx is done.
func (l *lineStream) send(ctx context.Context, line string) bool {
	select {
	case l.out <- line:
		return true
	case <-l.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// pump reads r line by line into the stream until EOF, stop or cancellation. A line
// longer than model.MaxLineLength is delivered cut to MaxLineLength+1 bytes and the
// rest of it is discarded, so reading always continues with the next line.
func (l *lineStream) pump(ctx context.Context, r io.Reader) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	var (
		line      []byte
		truncated bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		room := model.MaxLineLength + 1 - len(line)
		if len(chunk) > room {
			chunk, truncated = chunk[:max(room, 0)], true
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if len(line) > 0 {
			text := string(line)
			if !truncated {
				text = strings.TrimRight(text, "\r\n")
			}
			if !l.send(ctx, text) {
				return nil
			}
			line, truncated = line[:0], false
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// finish records the terminal error and closes the channel. The error is visible
// to readers once they observe the closed channel.
func (l *lineStream) finish(err error) {
	l.err = err
	close(l.out)
}

func (l *lineStream) halt() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *lineStream) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}
