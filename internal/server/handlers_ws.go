package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Niza-Khunga/collaborative-todo/internal/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser clients connect from arbitrary origins
	},
}

// clientSignal is what clients send on the socket: join and leave
// requests for list rooms. Everything else flows server to client.
type clientSignal struct {
	Event  string    `json:"event"`
	ListID uuid.UUID `json:"list_id"`
}

const (
	signalJoinList  = "join-list"
	signalLeaveList = "leave-list"
)

// handleWebSocket authenticates the session, upgrades it and then
// serves join/leave signals until the client disconnects. A session
// may be joined to any number of list rooms at once.
func (s *Server) handleWebSocket(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		return apperrors.UnauthorizedError("missing token")
	}

	userID, _, err := s.tokens.Verify(token)
	if err != nil {
		return apperrors.UnauthorizedError("invalid or expired token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket", "error", err)
		return nil
	}

	slog.Debug("WebSocket session opened", "user_id", userID.String())
	s.readLoop(c, conn, userID)

	s.hub.DropSession(conn)
	slog.Debug("WebSocket session closed", "user_id", userID.String())
	return nil
}

func (s *Server) readLoop(c echo.Context, conn *websocket.Conn, userID uuid.UUID) {
	// Before the first successful join no writer goroutine exists, so
	// error frames may be written directly. Afterwards the hub's writer
	// owns the socket and rejections are only logged.
	joined := false

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var signal clientSignal
		if err := json.Unmarshal(data, &signal); err != nil || signal.ListID == uuid.Nil {
			s.rejectSignal(conn, joined, "malformed signal")
			continue
		}

		switch signal.Event {
		case signalJoinList:
			// Room membership requires the same visibility as reading
			// the list over the API.
			if _, err := s.app.GetList(c.Request().Context(), signal.ListID, userID); err != nil {
				slog.Info("Join rejected", "list_id", signal.ListID.String(), "user_id", userID.String())
				s.rejectSignal(conn, joined, "list not found")
				continue
			}
			if err := s.hub.Join(signal.ListID, conn); err != nil {
				slog.Warn("Join failed", "list_id", signal.ListID.String(), "error", err)
				s.rejectSignal(conn, joined, "room unavailable")
				continue
			}
			joined = true
		case signalLeaveList:
			s.hub.Leave(signal.ListID, conn)
		default:
			s.rejectSignal(conn, joined, "unknown signal")
		}
	}
}

func (s *Server) rejectSignal(conn *websocket.Conn, joined bool, reason string) {
	if joined {
		return
	}
	msg, _ := json.Marshal(map[string]string{"event": "error", "reason": reason})
	_ = conn.WriteMessage(websocket.TextMessage, msg)
}
