package pcap

import (
	"Go2NetClassifier/internal/model"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Reader replays a pcap capture as switch telemetry: Ethernet frames are counted per
// directional MAC pair and emitted as cumulative counter lines once per interval of
// capture time.
type Reader struct {
	r      *pcapgo.Reader
	closer io.Closer
}

// NewReader opens the pcap file at filePath.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := NewReaderFrom(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReaderFrom reads a capture from r.
func NewReaderFrom(r io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &Reader{r: pr}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

type macPair struct {
	src, dst string
}

type counters struct {
	packets int64
	bytes   int64
}

// emitter accumulates counters and writes telemetry lines.
type emitter struct {
	w        io.Writer
	switchID string
	ports    map[string]int
	pairs    map[macPair]*counters
	order    []macPair
	lines    int
}

// port assigns switch ports to MAC addresses in first-seen order, as a learning
// switch would.
func (e *emitter) port(mac string) string {
	p, ok := e.ports[mac]
	if !ok {
		p = len(e.ports) + 1
		e.ports[mac] = p
	}
	return strconv.Itoa(p)
}

func (e *emitter) count(src, dst string, length int) {
	key := macPair{src: src, dst: dst}
	c, ok := e.pairs[key]
	if !ok {
		c = &counters{}
		e.pairs[key] = c
		e.order = append(e.order, key)
		e.port(src)
		e.port(dst)
	}
	c.packets++
	c.bytes += int64(length)
}

func (e *emitter) flush(at time.Time) error {
	for _, key := range e.order {
		c := e.pairs[key]
		_, err := fmt.Fprintf(e.w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			model.TelemetryMarker, at.Unix(), e.switchID,
			e.port(key.src), key.src, key.dst, e.port(key.dst),
			c.packets, c.bytes)
		if err != nil {
			return fmt.Errorf("failed to write telemetry line: %w", err)
		}
		e.lines++
	}
	return nil
}

// Emit reads every packet and writes telemetry lines to w, one per MAC pair at the
// end of each interval and once more at the end of the capture. It returns the number
// of lines written. Frames without an Ethernet layer are ignored.
func (r *Reader) Emit(w io.Writer, switchID string, interval time.Duration) (int, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", interval)
	}
	e := &emitter{
		w:        w,
		switchID: switchID,
		ports:    make(map[string]int),
		pairs:    make(map[macPair]*counters),
	}

	var windowEnd time.Time
	packetSource := gopacket.NewPacketSource(r.r, r.r.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	for packet := range packetSource.Packets() {
		ts := packet.Metadata().Timestamp
		if windowEnd.IsZero() {
			windowEnd = ts.Truncate(interval).Add(interval)
		}
		for !ts.Before(windowEnd) {
			if err := e.flush(windowEnd); err != nil {
				return e.lines, err
			}
			windowEnd = windowEnd.Add(interval)
		}

		eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
		if !ok {
			continue
		}
		e.count(eth.SrcMAC.String(), eth.DstMAC.String(), packet.Metadata().Length)
	}

	if !windowEnd.IsZero() {
		if err := e.flush(windowEnd); err != nil {
			return e.lines, err
		}
	}
	return e.lines, nil
}
