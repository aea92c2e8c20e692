package model

// TelemetryMarker is the line prefix carried by every telemetry record the probe emits.
const TelemetryMarker = "data"

// MaxLineLength bounds a telemetry line. Sources truncate longer lines just past the
// bound so the parser can reject them.
const MaxLineLength = 1 << 20

// TelemetryRecord holds one decoded line of per-switch counter telemetry.
// PacketCount and ByteCount are cumulative since the switch installed the flow entry.
type TelemetryRecord struct {
	Timestamp   int64
	SwitchID    string
	InPort      string
	SrcAddr     string
	DstAddr     string
	OutPort     string
	PacketCount int64
	ByteCount   int64
}

// Direction selects which half of a bidirectional flow a record updates.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Status reports whether a direction saw traffic on its last update.
type Status int

const (
	Inactive Status = iota
	Active
)

func (s Status) String() string {
	if s == Active {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// FeatureLen is the number of elements in a FeatureVector.
const FeatureLen = 12

// FeatureVector is the fixed-order numeric projection of a flow consumed by a classifier:
//
//	fwdDeltaPackets, fwdDeltaBytes, fwdInstPps, fwdAvgPps, fwdInstBps, fwdAvgBps,
//	revDeltaPackets, revDeltaBytes, revInstPps, revAvgPps, revInstBps, revAvgBps
type FeatureVector [FeatureLen]float64

// Classification is the outcome of classifying a single flow during a reporting cycle.
type Classification struct {
	FlowID        uint64
	SwitchID      string
	SrcAddr       string
	DstAddr       string
	Label         string
	ForwardStatus Status
	ReverseStatus Status
	Features      FeatureVector
}
