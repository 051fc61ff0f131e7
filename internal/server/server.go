package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fabricbridge/internal/actions"
	"fabricbridge/internal/config"
	"fabricbridge/internal/fabric"
	"fabricbridge/internal/gps"
	"fabricbridge/internal/journal"
	"fabricbridge/internal/vars"
)

// Server polls the position source, publishes poses into the variable
// store, drives periodic location shares through the dispatcher, and
// broadcasts live status to WebSocket clients.
type Server struct {
	cfg        *config.Config
	gpsProv    gps.Provider
	store      *vars.Store
	dispatcher *actions.Dispatcher
	journal    *journal.Journal
	webFS      fs.FS
	log        *slog.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	// Latest observed state for /api/status and new WS clients
	stateMu   sync.Mutex
	lastPose  *gps.Pose
	lastShare *fabric.Outcome
	tripKm    float64
	lastLat   float64
	lastLon   float64
	haveLast  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Pose  *gps.Pose    `json:"pose,omitempty"`
	Share *ShareStatus `json:"share,omitempty"`
	Trip  float64      `json:"trip"`  // km travelled this run
	Stamp int64        `json:"stamp"` // Unix ms
}

// ShareStatus is the outcome of the most recent share attempt.
type ShareStatus struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	At     int64  `json:"at"` // Unix ms
}

// New creates a new Server.
func New(cfg *config.Config, gpsProv gps.Provider, store *vars.Store,
	dispatcher *actions.Dispatcher, jnl *journal.Journal, webFS fs.FS, log *slog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		gpsProv:    gpsProv,
		store:      store,
		dispatcher: dispatcher,
		journal:    jnl,
		webFS:      webFS,
		log:        log,
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ObserveOutcome records a share attempt's result and pushes it to
// clients. Wired as the reporter's outcome hook; the dispatch path
// itself still discards the result.
func (s *Server) ObserveOutcome(o fabric.Outcome) {
	s.stateMu.Lock()
	s.lastShare = &o
	s.stateMu.Unlock()
	s.broadcast(s.snapshot())
}

// Run starts the HTTP server and the polling loops.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/share", s.handleShare)

	go s.pollLoop(ctx)
	if s.cfg.Share.Enabled {
		go s.shareLoop(ctx)
	}

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info("listening", "addr", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("ws upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()

	s.log.Info("ws client connected", "total", total)

	// Send current state immediately
	if data, err := json.Marshal(s.snapshot()); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive; we ignore client messages)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.log.Info("ws client disconnected", "total", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.cfg.Save(); err != nil {
			s.log.Error("config save failed", "error", err)
		}
		s.journal.SetEnabled(s.cfg.Journal.Enabled)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := json.Marshal(s.snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleShare triggers a manual location share. The dispatch runs in the
// background; its outcome shows up on the WebSocket and /api/status.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	go s.dispatcher.Dispatch(actions.ShareLocation)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"dispatched"}`))
}

// pollLoop reads the position source at 10 Hz, publishes valid fixes to
// the variable store, and broadcasts frames to clients.
func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.journal.Close()
			return
		case <-ticker.C:
			if s.gpsProv == nil {
				continue
			}
			pose, err := s.gpsProv.Read()
			if err != nil || pose == nil {
				continue
			}

			s.stateMu.Lock()
			s.lastPose = pose
			outcome := s.lastShare
			if pose.Valid {
				s.updateTripLocked(pose)
			}
			s.stateMu.Unlock()

			// Only valid fixes reach the store; connectors see missing
			// keys until the first fix arrives.
			if pose.Valid {
				s.store.SetPose(pose.Latitude, pose.Longitude, pose.YawDegrees)
			}

			s.journal.Record(pose, outcome)
			s.broadcast(s.snapshot())
		}
	}
}

// shareLoop dispatches a share action at the configured interval.
func (s *Server) shareLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Share.Interval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("periodic sharing enabled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatcher.Dispatch(actions.ShareLocation)
		}
	}
}

// snapshot assembles the current frame under the state lock.
func (s *Server) snapshot() Frame {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	frame := Frame{
		Pose:  s.lastPose,
		Trip:  math.Round(s.tripKm*1000) / 1000,
		Stamp: time.Now().UnixMilli(),
	}
	if s.lastShare != nil {
		frame.Share = &ShareStatus{
			OK:     s.lastShare.OK,
			Reason: s.lastShare.Reason,
			At:     s.lastShare.At.UnixMilli(),
		}
	}
	return frame
}

// updateTripLocked accumulates travelled distance. Caller holds stateMu.
func (s *Server) updateTripLocked(pose *gps.Pose) {
	if !s.haveLast {
		s.lastLat = pose.Latitude
		s.lastLon = pose.Longitude
		s.haveLast = true
		return
	}

	dist := haversineKm(s.lastLat, s.lastLon, pose.Latitude, pose.Longitude)

	// Ignore jumps > 500m per tick (GPS glitch)
	if dist > 0.5 {
		s.lastLat = pose.Latitude
		s.lastLon = pose.Longitude
		return
	}

	// Minimum movement threshold: ~2 meters
	if dist > 0.002 {
		s.tripKm += dist
		s.lastLat = pose.Latitude
		s.lastLon = pose.Longitude
	}
}

// haversineKm calculates the great-circle distance between two lat/lon points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0 // Earth radius km
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
