package snapshot

import (
	"Go2NetClassifier/internal/engine/flowtable"
	"Go2NetClassifier/internal/engine/manager"
	"Go2NetClassifier/internal/model"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Write(t *testing.T) {
	snap := &manager.Snapshot{
		Taken:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Records: 20,
		Flows: []manager.FlowSnapshot{
			{
				Flow: flowtable.Flow{
					ID: 1, SwitchID: "1", SrcAddr: "0a", DstAddr: "0b",
					Forward: flowtable.DirectionStats{Packets: 10, Bytes: 1000, AvgPps: 2, Status: model.Active},
				},
				Label: "Voice",
			},
			{Flow: flowtable.Flow{ID: 2, SwitchID: "1", SrcAddr: "0c", DstAddr: "0d"}},
		},
	}

	dir, err := NewWriter(t.TempDir()).Write(snap)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01_12-00-00", filepath.Base(dir))

	flows, err := Read(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(snap.Flows, flows); diff != "" {
		t.Errorf("flows mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(dir, summaryFile))
	require.NoError(t, err)
	var summary SummaryData
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 2, summary.TotalFlows)
	assert.Equal(t, uint64(20), summary.Records)
	assert.Equal(t, map[string]int{"Voice": 1}, summary.Labels)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
