package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/planvision/studio/internal/client"
	"github.com/planvision/studio/internal/model"
	"github.com/planvision/studio/internal/service"
	"github.com/planvision/studio/pkg/response"
)

type MaterialsHandler struct {
	sessions  *service.SessionManager
	catalog   client.Catalog
	validator *validator.Validate
}

func NewMaterialsHandler(sessions *service.SessionManager, catalog client.Catalog, v *validator.Validate) *MaterialsHandler {
	return &MaterialsHandler{
		sessions:  sessions,
		catalog:   catalog,
		validator: v,
	}
}

// InitRooms handles POST /api/sessions/:sessionId/rooms. It seeds the
// session's configuration model from a project's parsed floor plan, or
// from an inline room list when the caller already holds one.
func (h *MaterialsHandler) InitRooms(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}

	var req model.InitRoomsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	rooms := req.Rooms
	floorPlanID := ""
	if len(rooms) == 0 {
		if req.ProjectID == "" {
			return response.ValidationError(c, "project_id or rooms required", nil)
		}
		project, err := h.catalog.GetProject(c.Context(), req.ProjectID)
		if err != nil {
			return response.BackendError(c, err.Error())
		}
		if project.FloorPlan == nil || len(project.FloorPlan.Rooms) == 0 {
			return response.ValidationError(c, "Project has no parsed floor plan rooms", nil)
		}
		rooms = project.FloorPlan.Rooms
		floorPlanID = project.FloorPlan.ID
	}

	session.Materials.Initialize(rooms)
	if floorPlanID != "" {
		session.SetFloorPlan(floorPlanID)
	}

	return response.OK(c, roomViews(session))
}

// GetRooms handles GET /api/sessions/:sessionId/rooms
func (h *MaterialsHandler) GetRooms(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}
	return response.OK(c, roomViews(session))
}

// SetMaterial handles PUT /api/sessions/:sessionId/rooms/:roomId/material
func (h *MaterialsHandler) SetMaterial(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sessionId"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}

	var req model.SetMaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := session.Materials.SetMaterial(c.Params("roomId"), req.Surface, req.MaterialID); err != nil {
		return response.NotFound(c, err.Error())
	}
	return response.OK(c, roomViews(session))
}

// ListMaterials handles GET /api/materials?surface=, returning the
// library optionally narrowed to the surface-eligible partition.
func (h *MaterialsHandler) ListMaterials(c *fiber.Ctx) error {
	materials, err := h.catalog.ListMaterials(c.Context())
	if err != nil {
		return response.BackendError(c, err.Error())
	}

	if surface := c.Query("surface"); surface != "" {
		materials = service.MaterialsForSurface(materials, model.SurfaceType(surface))
	}
	return response.OK(c, fiber.Map{"materials": materials})
}

// ListStyles handles GET /api/styles
func (h *MaterialsHandler) ListStyles(c *fiber.Ctx) error {
	styles, err := h.catalog.ListStyles(c.Context())
	if err != nil {
		return response.BackendError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"styles": styles})
}

func roomViews(session *service.Session) []model.RoomConfigView {
	selection := session.Materials.Selection()
	rooms := session.Materials.Rooms()
	views := make([]model.RoomConfigView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, model.RoomConfigView{
			Room:      room,
			Materials: selection[room.ID],
		})
	}
	return views
}
