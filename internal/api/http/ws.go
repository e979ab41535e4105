package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trackmatch/internal/domain"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsRequestTimeout = 30 * time.Second
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleResolveWS reads one batch request from the socket and streams an
// "item" message per song as it completes, then "done". Closing the socket
// cancels the songs still pending.
func (s *Server) handleResolveWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/ws" {
		http.NotFound(w, r)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))
	var request domain.BatchRequest
	if err := conn.ReadJSON(&request); err != nil {
		s.writeWSError(conn, http.StatusBadRequest, "invalid_request", "invalid batch request")
		return
	}
	if err := validateBatch(request); err != nil {
		s.writeWSError(conn, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	items, err := s.resolver.ResolveBatchStream(ctx, request)
	if err != nil {
		status, code, message := classifyResolveError(err)
		s.writeWSError(conn, status, code, message)
		return
	}

	startedAt := time.Now()
	count := 0
	for item := range items {
		if err := s.writeWS(conn, "item", item); err != nil {
			s.logger.Debug("ws client gone", slog.String("error", err.Error()))
			return
		}
		count++
	}
	_ = s.writeWS(conn, "done", map[string]any{
		"count":     count,
		"elapsedMs": time.Since(startedAt).Milliseconds(),
	})
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

func (s *Server) writeWS(conn *websocket.Conn, msgType string, data any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(wsMessage{Type: msgType, Data: data})
}

func (s *Server) writeWSError(conn *websocket.Conn, status int, code, message string) {
	_ = s.writeWS(conn, "error", map[string]any{
		"status":  status,
		"code":    code,
		"message": message,
	})
}
