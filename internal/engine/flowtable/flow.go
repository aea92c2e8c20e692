package flowtable

import (
	"Go2NetClassifier/internal/model"
)

// DirectionStats holds the counters and rate features of one flow direction.
type DirectionStats struct {
	Packets      int64 // cumulative
	Bytes        int64 // cumulative
	DeltaPackets int64
	DeltaBytes   int64
	InstPps      float64
	AvgPps       float64
	InstBps      float64
	AvgBps       float64
	Status       model.Status
	LastUpdate   int64
}

// Flow is the live state of one bidirectional flow. The record that created it fixes
// SrcAddr as the forward source for the life of the flow.
type Flow struct {
	ID        uint64
	StartTime int64
	SwitchID  string
	InPort    string
	SrcAddr   string
	DstAddr   string
	OutPort   string

	Forward DirectionStats
	Reverse DirectionStats
}

// UpdateResult describes the effect of a single counter update.
type UpdateResult struct {
	Direction model.Direction
	// Err is model.ErrCounterReset when a cumulative counter went backwards.
	Err error
}

// newFlow seeds a flow from the record that first observed it. The forward direction
// takes the record's counters measured from a zero baseline, exactly as a later first
// reverse record is measured; the reverse direction starts zeroed and INACTIVE.
func newFlow(id uint64, rec *model.TelemetryRecord) *Flow {
	f := &Flow{
		ID:        id,
		StartTime: rec.Timestamp,
		SwitchID:  rec.SwitchID,
		InPort:    rec.InPort,
		SrcAddr:   rec.SrcAddr,
		DstAddr:   rec.DstAddr,
		OutPort:   rec.OutPort,
		Reverse:   DirectionStats{Status: model.Inactive, LastUpdate: rec.Timestamp},
	}
	f.Forward.LastUpdate = rec.Timestamp
	f.Update(model.Forward, rec.PacketCount, rec.ByteCount, rec.Timestamp)
	return f
}

// Identity returns the triple the flow was created with.
func (f *Flow) Identity() model.FlowIdentity {
	return model.FlowIdentity{SwitchID: f.SwitchID, SrcAddr: f.SrcAddr, DstAddr: f.DstAddr}
}

// Stats returns the statistics of the given direction.
func (f *Flow) Stats(dir model.Direction) *DirectionStats {
	if dir == model.Reverse {
		return &f.Reverse
	}
	return &f.Forward
}

// Update applies new cumulative counters observed at now to one direction only.
// Rates are recomputed only when their elapsed-time denominator is non-zero;
// otherwise the previous value is kept.
func (f *Flow) Update(dir model.Direction, packets, bytes, now int64) UpdateResult {
	s := f.Stats(dir)
	res := UpdateResult{Direction: dir}

	deltaPackets := packets - s.Packets
	deltaBytes := bytes - s.Bytes
	if deltaPackets < 0 || deltaBytes < 0 {
		// The switch restarted its counters: measure from zero again.
		res.Err = model.ErrCounterReset
		deltaPackets, deltaBytes = packets, bytes
	}

	s.DeltaPackets, s.DeltaBytes = deltaPackets, deltaBytes
	s.Packets, s.Bytes = packets, bytes

	if elapsed := now - f.StartTime; elapsed != 0 {
		s.AvgPps = float64(packets) / float64(elapsed)
		s.AvgBps = float64(bytes) / float64(elapsed)
	}
	if elapsed := now - s.LastUpdate; elapsed != 0 {
		s.InstPps = float64(deltaPackets) / float64(elapsed)
		s.InstBps = float64(deltaBytes) / float64(elapsed)
	}
	s.LastUpdate = now

	if deltaBytes == 0 || deltaPackets == 0 {
		s.Status = model.Inactive
	} else {
		s.Status = model.Active
	}
	return res
}

// Features projects the flow into the classifier's fixed-order feature vector.
func (f *Flow) Features() model.FeatureVector {
	return model.FeatureVector{
		float64(f.Forward.DeltaPackets),
		float64(f.Forward.DeltaBytes),
		f.Forward.InstPps,
		f.Forward.AvgPps,
		f.Forward.InstBps,
		f.Forward.AvgBps,
		float64(f.Reverse.DeltaPackets),
		float64(f.Reverse.DeltaBytes),
		f.Reverse.InstPps,
		f.Reverse.AvgPps,
		f.Reverse.InstBps,
		f.Reverse.AvgBps,
	}
}

// TrainingRow builds a labelled training row from the flow's current state.
func (f *Flow) TrainingRow(label string) model.TrainingRow {
	return model.TrainingRow{
		ForwardPackets: f.Forward.Packets,
		ForwardBytes:   f.Forward.Bytes,
		ReversePackets: f.Reverse.Packets,
		ReverseBytes:   f.Reverse.Bytes,
		Features:       f.Features(),
		Label:          label,
	}
}
