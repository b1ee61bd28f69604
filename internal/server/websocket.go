package server

import (
	"context"

	"github.com/gofiber/websocket/v2"

	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/turn"
)

// handleWebSocket reads one turn request frame, then writes one frame per
// event and the done frame. A client that closes the socket cancels the
// turn.
func (s *Server) handleWebSocket(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	var req turn.Request
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(stream.Event{
			Type: stream.TypeError,
			Data: turn.ErrorEvent{Message: "the first frame must be a turn request"},
		})
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	if _, err := s.runner.Run(ctx, req, stream.NewFrameEmitter(conn)); err != nil {
		s.logger.WithSession(req.SessionID).Info("websocket turn ended without a result", "error", err)
	}
}
