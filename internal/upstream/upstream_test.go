package upstream

import (
	"Go2NetClassifier/internal/model"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, lines <-chan string) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return got
			}
			got = append(got, l)
		case <-timeout:
			t.Fatalf("timed out waiting for end of stream, got %v", got)
		}
	}
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(strings.NewReader("banner\ndata\t0\tsw1\tp1\ta\tb\tp2\t1\t1\n"))
	lines, err := src.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"banner", "data\t0\tsw1\tp1\ta\tb\tp2\t1\t1"}, collect(t, lines))
	assert.NoError(t, src.Err())
	assert.NoError(t, src.Close())
}

func TestReaderSource_OverLongLine(t *testing.T) {
	valid := "data\t0\tsw1\tp1\ta\tb\tp2\t1\t1"
	input := strings.Repeat("a", 2<<20) + "\n" + valid + "\n"
	src := NewReaderSource(strings.NewReader(input))
	lines, err := src.Start(context.Background())
	require.NoError(t, err)

	got := collect(t, lines)
	require.Len(t, got, 2)
	assert.Len(t, got[0], model.MaxLineLength+1, "over-long line is cut just past the bound")
	assert.Equal(t, valid, got[1])
	assert.NoError(t, src.Err())
}

func TestReaderSource_LineAtBound(t *testing.T) {
	line := strings.Repeat("b", model.MaxLineLength)
	src := NewReaderSource(strings.NewReader(line + "\r\nlast"))
	lines, err := src.Start(context.Background())
	require.NoError(t, err)

	got := collect(t, lines)
	require.Len(t, got, 2)
	assert.Equal(t, line, got[0])
	assert.Equal(t, "last", got[1], "unterminated final line is delivered")
}

func TestProcessSource_EndOfStream(t *testing.T) {
	src := NewProcessSource(`printf 'one\ntwo\n'; echo three >&2`, testr.New(t))
	lines, err := src.Start(context.Background())
	require.NoError(t, err)

	got := collect(t, lines)
	assert.ElementsMatch(t, []string{"one", "two", "three"}, got)
	assert.NoError(t, src.Err())
	assert.NoError(t, src.Close())
}

func TestProcessSource_OverLongLineKeepsReading(t *testing.T) {
	const valid = 20000
	cmd := `head -c 2000000 /dev/zero | tr '\0' a; echo; ` +
		`yes "$(printf 'data\t1\tsw1\tp1\ta\tb\tp2\t1\t1')" | head -n 20000`
	src := NewProcessSource(cmd, testr.New(t))
	lines, err := src.Start(context.Background())
	require.NoError(t, err)

	got := collect(t, lines)
	require.Len(t, got, valid+1)
	assert.Len(t, got[0], model.MaxLineLength+1)
	assert.Equal(t, "data\t1\tsw1\tp1\ta\tb\tp2\t1\t1", got[valid])
	assert.NoError(t, src.Err())
	assert.NoError(t, src.Close())
}

func TestProcessSource_UnexpectedExit(t *testing.T) {
	src := NewProcessSource(`echo partial; exit 3`, testr.New(t))
	lines, err := src.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"partial"}, collect(t, lines))
	assert.ErrorIs(t, src.Err(), model.ErrUpstreamTerminated)
	assert.NoError(t, src.Close())
}

func TestProcessSource_CloseReleasesGroup(t *testing.T) {
	src := NewProcessSource(`sleep 30 & echo ready; sleep 30`, testr.New(t))
	lines, err := src.Start(context.Background())
	require.NoError(t, err)

	select {
	case l := <-lines:
		assert.Equal(t, "ready", l)
	case <-time.After(5 * time.Second):
		t.Fatal("upstream never became ready")
	}

	start := time.Now()
	require.NoError(t, src.Close())
	assert.Less(t, time.Since(start), DefaultStopGrace)

	collect(t, lines)
	assert.NoError(t, src.Err())
	assert.NoError(t, src.Close(), "second Close is a no-op")
}

func TestProcessSource_CancelledContext(t *testing.T) {
	src := NewProcessSource(`exit 0`, testr.New(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lines, err := src.Start(ctx)
	require.NoError(t, err)
	collect(t, lines)
	assert.NoError(t, src.Close())
}
