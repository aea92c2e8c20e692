package api

import (
	"Go2NetClassifier/internal/engine/flowtable"
	"Go2NetClassifier/internal/engine/manager"
	"Go2NetClassifier/internal/metrics"
	"Go2NetClassifier/internal/model"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFlows struct {
	snap  *manager.Snapshot
	state manager.State
}

func (s *stubFlows) Snapshot() *manager.Snapshot { return s.snap }
func (s *stubFlows) State() manager.State        { return s.state }

func newTestServer(t *testing.T, state manager.State) (*Server, *prometheus.Registry) {
	t.Helper()
	flow := flowtable.Flow{
		ID:       1,
		SwitchID: "sw1",
		SrcAddr:  "0a:0a",
		DstAddr:  "0b:0b",
		Forward:  flowtable.DirectionStats{Packets: 10, Bytes: 1000, DeltaPackets: 10, DeltaBytes: 1000, Status: model.Active},
		Reverse:  flowtable.DirectionStats{Packets: 4, Bytes: 400, Status: model.Inactive},
	}
	flows := &stubFlows{
		snap: &manager.Snapshot{
			Taken:   time.Unix(1700000000, 0),
			Records: 2,
			Flows:   []manager.FlowSnapshot{{Flow: flow, Label: "Ping"}},
		},
		state: state,
	}
	reg := prometheus.NewRegistry()
	metrics.New(reg).Records.Add(2)
	return NewServer(":0", flows, reg, testr.New(t)), reg
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListFlows(t *testing.T) {
	s, _ := newTestServer(t, manager.Running)
	rec := get(t, s, "/api/v1/flows")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Records float64          `json:"records"`
		Flows   []map[string]any `json:"flows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.0, body.Records)
	require.Len(t, body.Flows, 1)
	assert.Equal(t, "Ping", body.Flows[0]["label"])
	assert.Equal(t, 1.0, body.Flows[0]["flow_id"])
	assert.Len(t, body.Flows[0]["features"], model.FeatureLen)
	assert.Equal(t, "ACTIVE", body.Flows[0]["forward"].(map[string]any)["status"])
}

func TestGetFlow(t *testing.T) {
	s, _ := newTestServer(t, manager.Running)

	rec := get(t, s, "/api/v1/flows/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "0a:0a", body["src_addr"])

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/flows/2").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/flows/abc").Code)
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, manager.Running)
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)

	s, _ = newTestServer(t, manager.Stopped)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "STOPPED")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, manager.Running)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gonc_records_total 2")
}
