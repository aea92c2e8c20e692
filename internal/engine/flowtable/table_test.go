package flowtable

import (
	"Go2NetClassifier/internal/engine/protocol"
	"Go2NetClassifier/internal/model"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(ts int64, sw, src, dst string, packets, bytes int64) *model.TelemetryRecord {
	return &model.TelemetryRecord{
		Timestamp:   ts,
		SwitchID:    sw,
		InPort:      "1",
		SrcAddr:     src,
		DstAddr:     dst,
		OutPort:     "2",
		PacketCount: packets,
		ByteCount:   bytes,
	}
}

func TestTable_BidirectionalMatching(t *testing.T) {
	table := New()

	res, _, err := table.Apply(record(0, "sw1", "A", "B", 10, 1000))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, model.Forward, res.Direction)

	res2, _, err := table.Apply(record(1, "sw1", "B", "A", 3, 300))
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Equal(t, model.Reverse, res2.Direction)
	assert.Same(t, res.Flow, res2.Flow)
	assert.Equal(t, 1, table.Len())

	res3, _, err := table.Apply(record(2, "sw1", "A", "B", 12, 1200))
	require.NoError(t, err)
	assert.Equal(t, model.Forward, res3.Direction)
	assert.Same(t, res.Flow, res3.Flow)
	assert.Equal(t, "A", res.Flow.SrcAddr)
}

func TestTable_DistinctSwitchesAreDistinctFlows(t *testing.T) {
	table := New()
	_, _, _ = table.Apply(record(0, "sw1", "A", "B", 1, 1))
	_, _, _ = table.Apply(record(0, "sw2", "B", "A", 1, 1))
	assert.Equal(t, 2, table.Len())
}

func TestTable_NoConcatenationCollisions(t *testing.T) {
	// "sw1"+"0a"+"b" and "sw1"+"0"+"ab" concatenate to the same string.
	table := New()
	_, _, _ = table.Apply(record(0, "sw1", "0a", "b", 1, 1))
	res, _, err := table.Apply(record(0, "sw1", "0", "ab", 1, 1))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, table.Len())
}

func TestTable_CollisionDetected(t *testing.T) {
	lossy := func(switchID, src, dst string) FlowKey {
		return FlowKey{SwitchID: switchID + src + dst}
	}
	table := New(WithKeyFunc(lossy))
	_, _, err := table.Apply(record(0, "sw1", "0a", "b", 1, 1))
	require.NoError(t, err)

	res, _, err := table.Apply(record(1, "sw1", "0", "ab", 5, 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrFlowIdentityCollision))

	var ce *model.CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "0a", ce.Stored.SrcAddr)
	assert.Equal(t, "0", ce.Incoming.SrcAddr)
	assert.NotNil(t, res.Flow)
}

func TestFlow_DeltaAndRates(t *testing.T) {
	table := New()
	res, _, _ := table.Apply(record(100, "sw1", "A", "B", 100, 10000))
	_, upd, err := table.Apply(record(105, "sw1", "A", "B", 150, 12500))
	require.NoError(t, err)
	require.NoError(t, upd.Err)

	fwd := res.Flow.Forward
	assert.Equal(t, int64(50), fwd.DeltaPackets)
	assert.Equal(t, int64(2500), fwd.DeltaBytes)
	assert.InDelta(t, 10.0, fwd.InstPps, 1e-9)
	assert.InDelta(t, 500.0, fwd.InstBps, 1e-9)
	assert.InDelta(t, 30.0, fwd.AvgPps, 1e-9)
	assert.InDelta(t, 2500.0, fwd.AvgBps, 1e-9)
	assert.Equal(t, int64(105), fwd.LastUpdate)
	assert.Equal(t, model.Active, fwd.Status)
}

func TestFlow_RepeatedTimestampKeepsRates(t *testing.T) {
	table := New()
	res, _, _ := table.Apply(record(0, "sw1", "A", "B", 10, 100))
	_, _, _ = table.Apply(record(2, "sw1", "A", "B", 20, 200))
	before := res.Flow.Forward

	assert.NotPanics(t, func() {
		_, _, _ = table.Apply(record(2, "sw1", "A", "B", 30, 300))
	})
	after := res.Flow.Forward
	assert.Equal(t, before.InstPps, after.InstPps)
	assert.Equal(t, before.InstBps, after.InstBps)
	assert.Equal(t, int64(10), after.DeltaPackets)
	assert.InDelta(t, 15.0, after.AvgPps, 1e-9)
}

func TestFlow_StartTimeDenominatorGuard(t *testing.T) {
	table := New()
	res, _, _ := table.Apply(record(7, "sw1", "A", "B", 10, 100))
	_, _, _ = table.Apply(record(7, "sw1", "B", "A", 4, 40))

	rev := res.Flow.Reverse
	assert.Zero(t, rev.AvgPps)
	assert.Zero(t, rev.AvgBps)
	assert.Zero(t, rev.InstPps)
	assert.Equal(t, int64(4), rev.DeltaPackets)
}

func TestFlow_StatusFlips(t *testing.T) {
	table := New()
	res, _, _ := table.Apply(record(0, "sw1", "A", "B", 10, 100))

	_, _, _ = table.Apply(record(1, "sw1", "A", "B", 10, 150))
	assert.Equal(t, model.Inactive, res.Flow.Forward.Status, "zero packet delta")

	_, _, _ = table.Apply(record(2, "sw1", "A", "B", 11, 150))
	assert.Equal(t, model.Inactive, res.Flow.Forward.Status, "zero byte delta")

	_, _, _ = table.Apply(record(3, "sw1", "A", "B", 12, 200))
	assert.Equal(t, model.Active, res.Flow.Forward.Status)
	assert.Equal(t, model.Inactive, res.Flow.Reverse.Status)
}

func TestFlow_CounterReset(t *testing.T) {
	table := New()
	res, _, _ := table.Apply(record(0, "sw1", "A", "B", 100, 1000))
	_, upd, err := table.Apply(record(5, "sw1", "A", "B", 20, 200))
	require.NoError(t, err)
	assert.ErrorIs(t, upd.Err, model.ErrCounterReset)

	fwd := res.Flow.Forward
	assert.Equal(t, int64(20), fwd.DeltaPackets)
	assert.Equal(t, int64(200), fwd.DeltaBytes)
	assert.Equal(t, int64(20), fwd.Packets)
	assert.InDelta(t, 4.0, fwd.InstPps, 1e-9)
}

func TestFlow_FeaturesIdempotent(t *testing.T) {
	table := New()
	res, _, _ := table.Apply(record(0, "sw1", "A", "B", 10, 100))
	_, _, _ = table.Apply(record(3, "sw1", "B", "A", 7, 70))

	first := res.Flow.Features()
	second := res.Flow.Features()
	assert.Equal(t, first, second)
}

func TestEndToEnd(t *testing.T) {
	table := New()
	for _, line := range []string{
		"data\t0\tsw1\tp1\t0a:0a\t0b:0b\tp2\t10\t1000",
		"data\t5\tsw1\tp2\t0b:0b\t0a:0a\tp1\t4\t400",
	} {
		rec, err := protocol.ParseLine(line)
		require.NoError(t, err)
		_, _, err = table.Apply(rec)
		require.NoError(t, err)
	}

	require.Equal(t, 1, table.Len())
	f := table.Flows()[0]
	assert.Equal(t, int64(10), f.Forward.Packets)
	assert.Equal(t, int64(1000), f.Forward.Bytes)
	assert.Equal(t, int64(4), f.Reverse.Packets)
	assert.Equal(t, int64(400), f.Reverse.Bytes)
	assert.Equal(t, model.Active, f.Reverse.Status)

	want := model.FeatureVector{10, 1000, 0, 0, 0, 0, 4, 400, 0.8, 0.8, 80, 80}
	if diff := cmp.Diff(want, f.Features()); diff != "" {
		t.Errorf("feature vector mismatch (-want +got):\n%s", diff)
	}

	row := f.TrainingRow("voice")
	assert.Equal(t, int64(10), row.ForwardPackets)
	assert.Equal(t, int64(400), row.ReverseBytes)
	assert.Equal(t, "voice", row.Label)
}

func TestTable_SnapshotIsIndependent(t *testing.T) {
	table := New()
	_, _, _ = table.Apply(record(0, "sw1", "A", "B", 1, 1))
	snap := table.Snapshot()
	_, _, _ = table.Apply(record(1, "sw1", "A", "B", 5, 5))

	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].Forward.Packets)

	f, ok := table.Get(snap[0].ID)
	require.True(t, ok)
	assert.Equal(t, int64(5), f.Forward.Packets)
}
