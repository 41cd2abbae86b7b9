package server

import (
	"encoding/json"
	"log/slog"

	"cookiegram/internal/cache"
	"cookiegram/internal/middleware"
	"cookiegram/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// IssueWSTicket handles POST /api/ws/ticket. The ticket is single-use and
// short-lived; browsers pass it as ?ticket= because they cannot set headers
// on a WebSocket upgrade.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errNoRealtime))
	}

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket), currentExternalID(c), cache.WSTicketTTL).Err(); err != nil {
		return s.respondServiceError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

// WebsocketHandler upgrades GET /api/ws and registers the socket with the
// notification hub. userID is read from the locals set by AuthRequired.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("notification socket rejected",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		go client.WritePump()
		client.ReadPump()
	})
}
