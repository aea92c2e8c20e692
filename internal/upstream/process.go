package upstream

import (
	"Go2NetClassifier/internal/model"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// DefaultStopGrace is how long a terminated process group gets before it is killed.
const DefaultStopGrace = 5 * time.Second

// ProcessSource runs the telemetry probe as a child process group and reads its
// merged stdout and stderr.
type ProcessSource struct {
	command string
	grace   time.Duration
	log     logr.Logger

	stream  *lineStream
	cmd     *exec.Cmd
	reader  *os.File
	exited  chan struct{}
	waitErr error

	mu        sync.Mutex
	closed    bool
	closeErr  error
	closeOnce sync.Once
}

// NewProcessSource creates a source that runs command through the shell.
func NewProcessSource(command string, log logr.Logger) *ProcessSource {
	return &ProcessSource{
		command: command,
		grace:   DefaultStopGrace,
		log:     log.WithName("upstream"),
		stream:  newLineStream(),
		exited:  make(chan struct{}),
	}
}

// Start launches the child in a new process group.
func (s *ProcessSource) Start(ctx context.Context) (<-chan string, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}

	cmd := exec.Command("sh", "-c", s.command)
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start upstream %q: %w", s.command, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	s.cmd = cmd
	s.reader = pr
	s.log.Info("Upstream started", "command", s.command, "pid", cmd.Process.Pid)

	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	go func() {
		scanErr := s.stream.pump(ctx, pr)
		if scanErr != nil && !s.stream.stopped() {
			// Nobody reads the pipe any more: release it so a writing child gets
			// EPIPE and exits instead of blocking forever.
			s.log.Error(scanErr, "Failed to read upstream output, releasing pipe")
			pr.Close()
		}
		select {
		case <-s.exited:
		case <-s.stream.stop:
		}
		s.stream.finish(s.exitError(scanErr))
	}()

	return s.stream.out, nil
}

// exitError classifies the end of the stream. Exits caused by Close are expected.
func (s *ProcessSource) exitError(scanErr error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	if s.waitErr != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstreamTerminated, s.waitErr)
	}
	if scanErr != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstreamTerminated, scanErr)
	}
	return nil
}

// Close terminates the whole process group, escalating to SIGKILL after the grace
// period, and releases the pipe.
func (s *ProcessSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.stream.halt()

		if s.cmd == nil {
			return
		}
		s.closeErr = s.terminate()
		s.reader.Close()
	})
	return s.closeErr
}

func (s *ProcessSource) terminate() error {
	select {
	case <-s.exited:
		return nil
	default:
	}

	pid := s.cmd.Process.Pid
	if err := signalGroup(pid, false); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.Error(err, "Failed to terminate upstream process group", "pid", pid)
	}

	select {
	case <-s.exited:
	case <-time.After(s.grace):
		s.log.Info("Upstream did not exit in time, killing process group", "pid", pid, "grace", s.grace)
		if err := signalGroup(pid, true); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill upstream process group %d: %w", pid, err)
		}
		<-s.exited
	}
	s.log.Info("Upstream process group released", "pid", pid)
	return nil
}

// Err reports an unexpected exit once the channel is closed.
func (s *ProcessSource) Err() error {
	return s.stream.err
}
