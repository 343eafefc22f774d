// Package server exposes the WebSocket gateway, which feeds framed connections
// into the same hub as TCP clients, and a health check.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/framechat/internal/transport"
)

// WebSocketHandler upgrades the request and serves it like an accepted TCP
// connection: each binary or text message carries one frame.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	s.ServeConn(transport.NewWebSocketConn(conn, s.cfg.FrameSize))
}

// HealthHandler reports that the server is running and how many clients are connected.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "framechat server is running (%d clients)", s.ActiveClients())
}

// SetupRoutes returns a router with the gateway routes. Requests with a
// method other than GET get 405 Method Not Allowed.
func SetupRoutes(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.WebSocketHandler).Methods(http.MethodGet)
	return r
}
