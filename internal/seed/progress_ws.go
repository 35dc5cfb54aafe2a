package seed

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSProgressSink streams ProgressEvents to every websocket client watching
// a given job, the same connections-map-plus-broadcast shape the teacher
// uses for its settings bridge, simplified to one-way (server to client)
// broadcast.
//
// Grounded on internal/infrastructure/ws.SettingsWS/websocketsMap.
type WSProgressSink struct {
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]bool // jobID -> set of connections
}

// NewWSProgressSink builds a sink; call Upgrade from an HTTP handler to
// register a watcher for jobID.
func NewWSProgressSink(log *zap.SugaredLogger) *WSProgressSink {
	return &WSProgressSink{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]map[*websocket.Conn]bool),
	}
}

// Upgrade promotes an HTTP request to a websocket connection and registers
// it as a watcher of jobID until the client disconnects.
func (s *WSProgressSink) Upgrade(jobID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	s.add(jobID, conn)
	s.log.Infow("seed progress websocket connected", "job", jobID)
	go s.drain(jobID, conn)
	return nil
}

// drain discards incoming client messages (this channel is server-to-client
// only) until the connection closes, then deregisters it.
func (s *WSProgressSink) drain(jobID string, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.remove(jobID, conn)
	s.log.Infow("seed progress websocket disconnected", "job", jobID)
}

func (s *WSProgressSink) add(jobID string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[jobID] == nil {
		s.conns[jobID] = make(map[*websocket.Conn]bool)
	}
	s.conns[jobID][conn] = true
}

func (s *WSProgressSink) remove(jobID string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns[jobID], conn)
	conn.Close()
}

// Report broadcasts ev to every connection watching ev.JobID.
func (s *WSProgressSink) Report(ev ProgressEvent) {
	s.mu.RLock()
	watchers := s.conns[ev.JobID]
	conns := make([]*websocket.Conn, 0, len(watchers))
	for c := range watchers {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(ev); err != nil {
			s.remove(ev.JobID, c)
		}
	}
}
