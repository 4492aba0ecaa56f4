package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/planvision/studio/internal/client"
	"github.com/planvision/studio/internal/model"
	"github.com/planvision/studio/internal/service"
	"github.com/planvision/studio/pkg/response"
)

type RenderHandler struct {
	sessions  *service.SessionManager
	backend   client.RenderBackend
	gallery   *service.GalleryService
	validator *validator.Validate
}

func NewRenderHandler(sessions *service.SessionManager, backend client.RenderBackend, gallery *service.GalleryService, v *validator.Validate) *RenderHandler {
	return &RenderHandler{
		sessions:  sessions,
		backend:   backend,
		gallery:   gallery,
		validator: v,
	}
}

// Start handles POST /api/sessions/:sessionId/render/start
func (h *RenderHandler) Start(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}

	var req model.StartRenderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	cfg := model.RenderConfig{
		Size:             req.Size,
		Quality:          req.Quality,
		StylePreset:      req.StylePreset,
		Lighting:         req.Lighting,
		TimeOfDay:        req.TimeOfDay,
		AdditionalPrompt: req.AdditionalPrompt,
	}

	batchReq, err := session.Materials.BuildBatchRequest(session.FloorPlan(), cfg)
	if err != nil {
		return response.ValidationError(c, "No rooms configured for rendering", nil)
	}

	if err := session.Orchestrator.Start(c.Context(), batchReq); err != nil {
		if errors.Is(err, service.ErrNoRooms) {
			return response.ValidationError(c, "No rooms configured for rendering", nil)
		}
		if errors.Is(err, service.ErrRenderInProgress) {
			return response.Error(c, fiber.StatusConflict, response.CodeRenderError, "Render already in progress", nil)
		}
		// Backend start failure: detail message passed through verbatim.
		return response.BackendError(c, err.Error())
	}

	return response.Accepted(c, session.Orchestrator.State())
}

// State handles GET /api/sessions/:sessionId/render/state
func (h *RenderHandler) State(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}
	return response.OK(c, session.Orchestrator.State())
}

// Cancel handles POST /api/sessions/:sessionId/render/cancel
func (h *RenderHandler) Cancel(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}
	session.Orchestrator.Cancel(c.Context())
	return response.OK(c, session.Orchestrator.State())
}

// Reset handles POST /api/sessions/:sessionId/render/reset
func (h *RenderHandler) Reset(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}
	session.Orchestrator.Reset()
	return response.OK(c, session.Orchestrator.State())
}

// DismissError handles POST /api/sessions/:sessionId/render/dismiss-error
func (h *RenderHandler) DismissError(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}
	session.Orchestrator.ClearError()
	return response.OK(c, session.Orchestrator.State())
}

// RoomRender handles POST /api/render/room, a single-room concept render
// proxied straight through to the backend.
func (h *RenderHandler) RoomRender(c *fiber.Ctx) error {
	var req model.RoomRenderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.backend.RenderRoom(c.Context(), &req)
	if err != nil {
		return response.BackendError(c, err.Error())
	}
	return response.OK(c, result)
}

// PipelineStatus handles GET /api/render/pipeline/status
func (h *RenderHandler) PipelineStatus(c *fiber.Ctx) error {
	status, err := h.backend.PipelineStatus(c.Context())
	if err != nil {
		return response.BackendError(c, err.Error())
	}
	return response.OK(c, status)
}

// DeleteJob handles DELETE /api/render/jobs/:jobId
func (h *RenderHandler) DeleteJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.backend.DeleteBatchJob(c.Context(), jobID)
	if err != nil {
		return response.BackendError(c, err.Error())
	}

	if fp := c.Query("floor_plan_id"); fp != "" && h.gallery != nil {
		h.gallery.Invalidate(c.Context(), fp)
	}
	return response.OK(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
