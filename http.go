package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const signerHeader = "X-Signer-Account"

type recordRequest struct {
	Price *float64 `json:"price"`
}

type averageResponse struct {
	Average float64 `json:"average"`
}

type depthResponse struct {
	Depth int `json:"depth"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type snapshot struct {
	Depth         int `json:"depth"`
	RequiredDepth int `json:"required_depth"`
}

type server struct {
	host   *Host
	broker *Broker
	log    *zap.SugaredLogger
}

func newHandler(host *Host, b *Broker, gatherer prometheus.Gatherer, log *zap.SugaredLogger) http.Handler {
	s := &server{host: host, broker: b, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /record_price", s.recordPrice)
	mux.HandleFunc("GET /get_average", s.getAverage)
	mux.HandleFunc("GET /depth_so_far", s.depthSoFar)
	mux.HandleFunc("GET /required_depth", s.requiredDepth)
	mux.HandleFunc("POST /reset", s.reset)
	mux.HandleFunc("GET /events", s.events)
	mux.HandleFunc("GET /events/recent", s.recentEvents)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// writeJSON encodes v before committing to status, so an unencodable value
// turns into a 500 rather than an empty success.
func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Errorw("JSON marshalling error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrWindowNotFull):
		status = http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	default:
		s.log.Errorw("Invocation failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *server) recordPrice(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decoding request: %v", err)})
		return
	}
	if req.Price == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing price"})
		return
	}
	if err := s.host.RecordPrice(r.Context(), r.Header.Get(signerHeader), *req.Price); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getAverage(w http.ResponseWriter, r *http.Request) {
	avg, err := s.host.GetAverage(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	// JSON has no NaN or Inf. The window holds such a value until it is
	// overwritten or reset.
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: fmt.Sprintf("average is not finite: %v", avg)})
		return
	}
	s.writeJSON(w, http.StatusOK, averageResponse{Average: avg})
}

func (s *server) depthSoFar(w http.ResponseWriter, r *http.Request) {
	depth, err := s.host.DepthSoFar(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, depthResponse{Depth: depth})
}

func (s *server) requiredDepth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, depthResponse{Depth: s.host.RequiredDepth()})
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.host.Reset(r.Context(), r.Header.Get(signerHeader)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) recentEvents(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.host.RecentEvents())
}

// events streams history events as server-sent events. ?event=record limits
// the stream to one event kind.
func (s *server) events(w http.ResponseWriter, r *http.Request) {
	only := r.URL.Query().Get("event")

	// Mandatory SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Tell client to retry in 3s if disconnected
	if _, err := fmt.Fprint(w, "retry: 3000\n\n"); err != nil {
		return
	}

	// Subscribe before the snapshot so nothing recorded in between is lost.
	ch, unsubscribe := s.broker.Subscribe()
	defer unsubscribe()

	depth, err := s.host.DepthSoFar(r.Context())
	if err != nil {
		s.log.Warnw("Loading snapshot for event stream", "error", err)
	} else if !s.send(w, snapshot{Depth: depth, RequiredDepth: s.host.RequiredDepth()}) {
		return
	}
	flusher.Flush()

	// Heartbeats to keep connections alive through proxies
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if only != "" && msg.Event.Event != only {
				continue
			}
			if !s.send(w, msg) {
				return
			}
			flusher.Flush()
		}
	}
}

// send writes one SSE data frame and reports whether the client is still
// there.
func (s *server) send(w http.ResponseWriter, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warnw("JSON marshalling error", "error", err)
		return true
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err == nil
}
