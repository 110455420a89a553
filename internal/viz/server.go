package viz

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/territory-controller/internal/controller"
	"github.com/signalsfoundry/territory-controller/internal/logging"
)

const writeWait = 5 * time.Second

// OwnershipResponse is the /api/ownership payload.
type OwnershipResponse struct {
	Arena     string              `json:"arena"`
	MatchTime float64             `json:"match_time"`
	Owners    map[string]int      `json:"owners"`
	Locked    []string            `json:"locked"`
	Attached  map[string][]string `json:"attached"`
	Scores    map[string]int      `json:"stations_owned"`
}

// Server serves the visualization endpoints.
type Server struct {
	hub      *Hub
	source   controller.SnapshotSource
	metrics  http.Handler
	log      logging.Logger
	upgrader websocket.Upgrader
}

// NewServer wires the hub and snapshot source. metrics may be nil.
func NewServer(hub *Hub, source controller.SnapshotSource, metrics http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		hub:     hub,
		source:  source,
		metrics: metrics,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the HTTP routes: /metrics, /api/ownership, /ws and /healthz.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/api/ownership", s.ownershipHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.websocketHandler)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

func (s *Server) ownershipHandler(w http.ResponseWriter, r *http.Request) {
	var snap *controller.Snapshot
	if s.source != nil {
		snap = s.source.Snapshot()
	}
	if snap == nil {
		http.Error(w, "match not started", http.StatusServiceUnavailable)
		return
	}

	resp := OwnershipResponse{
		Arena:     snap.Arena,
		MatchTime: snap.MatchTime.Seconds(),
		Owners:    make(map[string]int, len(snap.Stations)),
		Locked:    []string{},
		Attached:  make(map[string][]string, len(snap.Claimants)),
		Scores:    make(map[string]int, len(snap.Claimants)),
	}
	for _, station := range snap.Stations {
		resp.Owners[string(station)] = int(snap.Claimant(station))
		if snap.IsLocked(station) {
			resp.Locked = append(resp.Locked, string(station))
		}
	}
	for _, c := range snap.Claimants {
		name := c.ID.String()
		attached := make([]string, 0, len(snap.Attached[c.ID]))
		for _, station := range snap.Attached[c.ID] {
			attached = append(attached, string(station))
		}
		resp.Attached[name] = attached
		resp.Scores[name] = len(snap.Owned(c.ID))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn(r.Context(), "write ownership response failed", logging.Err(err))
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	id, frames := s.hub.watch()
	defer s.hub.unwatch(id)
	s.log.Debug(r.Context(), "viz watcher connected", logging.Int("watcher", int(id)))

	// Reading is required to notice the client closing the socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case payload := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
