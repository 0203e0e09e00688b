package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetlens/maprt/internal/dispatcher"
)

// commandFrame is one inbound host command over the WebSocket.
type commandFrame struct {
	Command string          `json:"command"`
	Args    []string        `json:"args,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// commandResult is the reply for a frame. Buffered commands report "queued".
type commandResult struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// commandServer accepts host WebSocket connections and feeds frames into the
// dispatcher. The map has a single owner; this server is just the transport,
// so concurrent connections are allowed and serialize on the runtime mutex.
type commandServer struct {
	srv      *http.Server
	disp     *dispatcher.Dispatcher
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func newCommandServer(addr string, disp *dispatcher.Dispatcher, logger *slog.Logger) *commandServer {
	s := &commandServer{
		disp: disp,
		log:  logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The daemon binds to loopback by default; remote origins are
			// the host's responsibility when it exposes the port.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/commands", s.handleCommands)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *commandServer) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *commandServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *commandServer) handleCommands(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	s.log.Info("host connected", "remote", r.RemoteAddr)

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("host connection lost", "error", err, "remote", r.RemoteAddr)
			} else {
				s.log.Info("host disconnected", "remote", r.RemoteAddr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame commandFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.writeResult(conn, commandResult{OK: false, Error: "malformed frame: " + err.Error()})
			continue
		}
		if frame.Command == "" {
			s.writeResult(conn, commandResult{OK: false, Error: "missing command"})
			continue
		}

		result, err := s.disp.Dispatch(dispatcher.Event{
			Command:   frame.Command,
			Args:      frame.Args,
			Raw:       frame.Payload,
			Timestamp: time.Now(),
		})

		reply := commandResult{Command: frame.Command, OK: err == nil, Result: result}
		if err != nil {
			reply.Error = err.Error()
		}
		s.writeResult(conn, reply)
	}
}

func (s *commandServer) writeResult(conn *websocket.Conn, res commandResult) {
	if err := conn.WriteJSON(res); err != nil {
		s.log.Warn("failed to write command result", "error", err)
	}
}
