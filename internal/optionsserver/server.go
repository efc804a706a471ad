// Package optionsserver serves the options UI's static assets and
// relays its requests into the engine, pushing pause-state and
// topology-change notifications back over a websocket.
package optionsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/messages"
	"github.com/sentinel-wallpaper/engine/internal/pause"
	"github.com/sentinel-wallpaper/engine/internal/platform"
	"github.com/sentinel-wallpaper/engine/internal/topology"
)

var log = logging.L("optionsserver")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	broadcastEvery = 1 * time.Second
	sendQueueSize  = 16
)

// Relay is the subset of Supervisor the options server drives. Kept
// narrow so tests can fake it without constructing a real Supervisor.
type Relay interface {
	AssignProfile(messages.AssignProfile)
	SaveEditable(assetID string, msg messages.SaveEditable)
	UpdateConfig(path string, value any)
}

// Push is the periodic snapshot broadcast over the websocket endpoint.
type Push struct {
	Type     string                    `json:"type"`
	Topology platform.TopologySnapshot `json:"topology"`
	Verdicts map[string]pause.Verdict  `json:"verdicts"`
}

// Server is a local-only HTTP server: static options UI assets on GET,
// JSON POST endpoints relayed to the Supervisor, and a push websocket.
type Server struct {
	httpServer *http.Server
	relay      Relay
	watcher    *topology.Watcher
	controller *pause.Controller
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// New builds a Server. staticDir holds the options UI's HTML/CSS/JS;
// watcher and controller may be nil, in which case broadcasts carry a
// zero-value topology/verdict set.
func New(addr, staticDir string, relay Relay, watcher *topology.Watcher, controller *pause.Controller) *Server {
	s := &Server{
		relay:      relay,
		watcher:    watcher,
		controller: controller,
		clients:    make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // local-only loopback server
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	mux.HandleFunc("/api/save-editable", s.handleSaveEditable)
	mux.HandleFunc("/api/assign-profile", s.handleAssignProfile)
	mux.HandleFunc("/api/config-update", s.handleConfigUpdate)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.broadcastLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("options server shutdown error", "error", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (s *Server) handleSaveEditable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg struct {
		AssetID string `json:"assetId"`
		messages.SaveEditable
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.relay.SaveEditable(msg.AssetID, msg.SaveEditable)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg messages.AssignProfile
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.relay.AssignProfile(msg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg messages.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.relay.UpdateConfig(msg.Path, msg.Value)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, sendQueueSize)
	s.mu.Lock()
	s.clients[conn] = send
	s.mu.Unlock()

	go s.writePump(conn, send)
	s.readPump(conn, send)
}

// readPump only drains control frames (pong, close); the options UI
// never sends data over this connection.
func (s *Server) readPump(conn *websocket.Conn, send chan []byte) {
	defer s.disconnect(conn, send)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) disconnect(conn *websocket.Conn, send chan []byte) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// broadcastLoop pushes a topology/pause-state snapshot to every
// connected options window on a fixed cadence.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(broadcastEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	push := Push{Type: "push_state"}
	if s.watcher != nil {
		push.Topology = s.watcher.Current()
	}
	if s.controller != nil {
		push.Verdicts = s.controller.Verdicts()
	}

	data, err := json.Marshal(push)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, send := range s.clients {
		select {
		case send <- data:
		default:
			log.Warn("options client send queue full, dropping push")
			_ = conn
		}
	}
}
