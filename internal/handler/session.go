package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/planvision/studio/internal/model"
	"github.com/planvision/studio/internal/service"
	"github.com/planvision/studio/pkg/response"
)

type SessionHandler struct {
	sessions *service.SessionManager
}

func NewSessionHandler(sessions *service.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	session := h.sessions.Create()
	return response.Created(c, model.SessionInfo{SessionID: session.ID})
}

// Close handles DELETE /api/sessions/:sessionId
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	if err := h.sessions.Close(c.Params("sessionId")); err != nil {
		return response.NotFound(c, "Session not found")
	}
	return response.NoContent(c)
}
