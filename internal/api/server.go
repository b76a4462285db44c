// Package api exposes the engine operations over a small HTTP control
// surface so an operator can drive a running simulator.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"route-simulator/internal/geo"
	"route-simulator/internal/metrics"
	"route-simulator/internal/route"
	"route-simulator/internal/sim"
)

type Server struct {
	root     context.Context
	engine   *sim.Engine
	composer *route.Composer
	col      *metrics.Collector
}

// NewServer wires the control endpoints. root is the process context:
// playback started over HTTP outlives the request but not the process.
func NewServer(root context.Context, engine *sim.Engine, composer *route.Composer, col *metrics.Collector) *Server {
	return &Server{root: root, engine: engine, composer: composer, col: col}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /resume", s.handleResume)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /speed", s.handleSpeed)
	mux.HandleFunc("POST /route", s.handleRoute)
	return mux
}

// Serve starts the control server on the given address.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("control server error: %v", err)
		}
	}()
	log.Printf("control listening on %s", addr)
	return srv
}

type statusResponse struct {
	State           string     `json:"state"`
	Index           int        `json:"index"`
	Progress        float64    `json:"progress"`
	Position        *geo.Point `json:"position"`
	SpeedMps        float64    `json:"speedMps"`
	PathLen         int        `json:"pathLen"`
	DistanceMeters  float64    `json:"distanceMeters"`
	DurationSeconds float64    `json:"durationSeconds"`
	Applied         bool       `json:"applied"`
}

func (s *Server) writeStatus(w http.ResponseWriter, applied bool) {
	snap := s.engine.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		State:           snap.State.String(),
		Index:           snap.Index,
		Progress:        snap.Progress,
		Position:        snap.Position,
		SpeedMps:        snap.SpeedMps,
		PathLen:         snap.PathLen,
		DistanceMeters:  snap.Metrics.DistanceMeters,
		DurationSeconds: snap.Metrics.DurationSeconds,
		Applied:         applied,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeStatus(w, true)
}

// Lifecycle endpoints report the resulting snapshot; illegal
// transitions are no-ops with applied=false rather than errors.
func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.writeStatus(w, s.engine.Start(s.root))
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.writeStatus(w, s.engine.Pause())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.writeStatus(w, s.engine.Resume(s.root))
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.Stop()
	s.writeStatus(w, true)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.engine.Reset()
	s.writeStatus(w, true)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("mps")
	if v == "" {
		var body struct {
			Mps float64 `json:"mps"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "mps query parameter or JSON body required", http.StatusBadRequest)
			return
		}
		s.applySpeed(w, body.Mps)
		return
	}
	mps, err := strconv.ParseFloat(v, 64)
	if err != nil {
		http.Error(w, "invalid mps", http.StatusBadRequest)
		return
	}
	s.applySpeed(w, mps)
}

func (s *Server) applySpeed(w http.ResponseWriter, mps float64) {
	if !s.engine.SetSpeed(mps) {
		http.Error(w, "speed must be > 0", http.StatusBadRequest)
		return
	}
	s.writeStatus(w, true)
}

type routeRequest struct {
	Stops []struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
	} `json:"stops"`
}

// handleRoute composes a fresh route from the posted stops and loads
// it into the session. Composition is all-or-nothing: on failure the
// session keeps whatever route it held.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid route body", http.StatusBadRequest)
		return
	}
	if len(req.Stops) < 2 {
		http.Error(w, "at least two stops required", http.StatusBadRequest)
		return
	}
	stops := make([]route.Stop, 0, len(req.Stops))
	for _, st := range req.Stops {
		stops = append(stops, route.Stop{Name: st.Name, Point: geo.Point{Lat: st.Lat, Lon: st.Lon}})
	}

	path, m, err := s.composer.Compose(r.Context(), stops)
	if err != nil {
		if s.col != nil {
			s.col.CompositionErrs.Inc()
		}
		log.Printf("composition failed: %v", err)
		http.Error(w, "composition failed", http.StatusBadGateway)
		return
	}
	if s.col != nil {
		s.col.Compositions.Inc()
	}
	if !s.engine.Load(path, m) {
		http.Error(w, "session is busy; stop playback first", http.StatusConflict)
		return
	}
	s.writeStatus(w, true)
}
