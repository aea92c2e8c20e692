package api

import (
	"Go2NetClassifier/internal/engine/manager"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const shutdownTimeout = 5 * time.Second

// FlowSource provides the published view of the dispatch loop.
type FlowSource interface {
	Snapshot() *manager.Snapshot
	State() manager.State
}

// Server exposes the flow table and metrics over HTTP.
type Server struct {
	server *http.Server
	flows  FlowSource
	log    logr.Logger
}

// NewServer builds the router. gatherer backs the /metrics endpoint.
func NewServer(addr string, flows FlowSource, gatherer prometheus.Gatherer, log logr.Logger) *Server {
	s := &Server{flows: flows, log: log.WithName("api")}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/flows", s.listFlowsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/flows/{id:[0-9]+}", s.getFlowHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.server = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is done and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API server starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("could not listen on %s: %w", s.server.Addr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.log.Info("API server exited")
	return nil
}

func (s *Server) listFlowsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.flows.Snapshot()
	flows := make([]any, len(snap.Flows))
	for i := range snap.Flows {
		flows[i] = flowFields(&snap.Flows[i])
	}
	msg, err := structpb.NewStruct(map[string]any{
		"taken":   snap.Taken.UTC().Format(time.RFC3339Nano),
		"records": snap.Records,
		"flows":   flows,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode flows: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, msg)
}

func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid flow id: %v", err), http.StatusBadRequest)
		return
	}

	snap := s.flows.Snapshot()
	for i := range snap.Flows {
		if snap.Flows[i].ID != id {
			continue
		}
		msg, err := structpb.NewStruct(flowFields(&snap.Flows[i]))
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to encode flow: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, msg)
		return
	}
	http.Error(w, fmt.Sprintf("flow %d not found", id), http.StatusNotFound)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	state := s.flows.State()
	msg, _ := structpb.NewStruct(map[string]any{"state": state.String()})
	if state != manager.Running {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		b, _ := protojson.Marshal(msg)
		w.Write(b)
		return
	}
	writeJSON(w, msg)
}

func flowFields(f *manager.FlowSnapshot) map[string]any {
	features := f.Features()
	vec := make([]any, len(features))
	for i, v := range features {
		vec[i] = v
	}
	return map[string]any{
		"flow_id":    f.ID,
		"start_time": f.StartTime,
		"switch_id":  f.SwitchID,
		"in_port":    f.InPort,
		"src_addr":   f.SrcAddr,
		"dst_addr":   f.DstAddr,
		"out_port":   f.OutPort,
		"label":      f.Label,
		"forward":    directionFields(f.Forward.Packets, f.Forward.Bytes, f.Forward.Status.String()),
		"reverse":    directionFields(f.Reverse.Packets, f.Reverse.Bytes, f.Reverse.Status.String()),
		"features":   vec,
	}
}

func directionFields(packets, bytes int64, status string) map[string]any {
	return map[string]any{"packets": packets, "bytes": bytes, "status": status}
}

func writeJSON(w http.ResponseWriter, msg proto.Message) {
	jsonBytes, err := protojson.Marshal(msg)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
