package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/registry"
	"github.com/oshokin/media-grabber/internal/service/progress"
)

const (
	// webSocketWriteTimeout bounds one WebSocket write.
	webSocketWriteTimeout = 10 * time.Second
	// webSocketCloseGrace is how long the close handshake may take.
	webSocketCloseGrace = time.Second
)

// WebSocket message types sent by clients and answered by the server.
const (
	messageTypePing = "ping"
	messageTypePong = "pong"
)

// clientMessage is a message received over the WebSocket.
type clientMessage struct {
	// Type is the message type.
	Type string `json:"type"`
}

// handleProgressStream streams job status as Server-Sent Events.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	controller := http.NewResponseController(w)

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	emit := func(event *progress.Event) error {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}

		if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}

		if err = controller.Flush(); err != nil {
			return fmt.Errorf("failed to flush event: %w", err)
		}

		return nil
	}

	s.logWatchResult(ctx, id, s.notifier.Watch(ctx, id, emit))
}

// handleWebSocket streams job status over a WebSocket.
// Clients may send {"type":"ping"} and receive {"type":"pong"}; closing the socket stops the stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		logger.Debugf(r.Context(), "WebSocket upgrade failed: %v", err)

		return
	}

	defer conn.Close() //nolint:errcheck // The connection is finished either way.

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	socket := &socketWriter{conn: conn, mu: new(sync.Mutex)}

	go func() {
		// Any read error means the client is gone.
		defer cancel()

		for {
			var message clientMessage
			if readErr := conn.ReadJSON(&message); readErr != nil {
				return
			}

			if message.Type == messageTypePing {
				if writeErr := socket.writeJSON(&progress.Event{Type: messageTypePong}); writeErr != nil {
					return
				}
			}
		}
	}()

	watchErr := s.notifier.Watch(ctx, id, socket.writeEvent)
	s.logWatchResult(ctx, id, watchErr)

	socket.close(websocket.CloseNormalClosure)
}

// logWatchResult logs the end of a progress stream.
func (s *Server) logWatchResult(ctx context.Context, id string, err error) {
	switch {
	case err == nil:
		logger.Debugf(ctx, "Progress stream of %s finished", id)
	case errors.Is(err, registry.ErrJobNotFound):
		logger.Debugf(ctx, "Progress stream requested for unknown job %s", id)
	case errors.Is(err, context.Canceled):
		logger.Debugf(ctx, "Client left the progress stream of %s", id)
	default:
		logger.Warnf(ctx, "Progress stream of %s failed: %v", id, err)
	}
}

// socketWriter serializes writes to a WebSocket connection.
type socketWriter struct {
	// conn is the WebSocket connection.
	conn *websocket.Conn
	// mu allows one writer at a time.
	mu *sync.Mutex
}

func (s *socketWriter) writeEvent(event *progress.Event) error {
	return s.writeJSON(event)
}

func (s *socketWriter) writeJSON(message any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(webSocketWriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := s.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (s *socketWriter) close(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(webSocketCloseGrace),
	)
}
