package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/planvision/studio/internal/model"
	"github.com/planvision/studio/internal/service"
	"github.com/planvision/studio/pkg/response"
)

type GalleryHandler struct {
	gallery   *service.GalleryService
	sessions  *service.SessionManager
	validator *validator.Validate
}

func NewGalleryHandler(gallery *service.GalleryService, sessions *service.SessionManager, v *validator.Validate) *GalleryHandler {
	return &GalleryHandler{
		gallery:   gallery,
		sessions:  sessions,
		validator: v,
	}
}

// Items handles GET /api/gallery?floor_plan_id=&room=&style=&sort=&group=
func (h *GalleryHandler) Items(c *fiber.Ctx) error {
	floorPlanID := c.Query("floor_plan_id")
	if floorPlanID == "" {
		return response.ValidationError(c, "floor_plan_id is required", nil)
	}

	filter := service.GalleryFilter{
		Room:  c.Query("room"),
		Style: c.Query("style"),
	}
	sortKey := service.GallerySort(c.Query("sort", string(service.SortNewest)))

	if c.QueryBool("group") {
		groups, err := h.gallery.Grouped(c.Context(), floorPlanID, filter, sortKey)
		if err != nil {
			return response.BackendError(c, err.Error())
		}
		return response.OK(c, fiber.Map{"groups": groups})
	}

	items, err := h.gallery.Items(c.Context(), floorPlanID, filter, sortKey)
	if err != nil {
		return response.BackendError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"items": items, "total": len(items)})
}

// Favorite handles POST /api/gallery/favorite
func (h *GalleryHandler) Favorite(c *fiber.Ctx) error {
	req, session, err := h.parseToggle(c)
	if err != nil {
		return err
	}
	favorited := session.Selection.ToggleFavorite(req.JobID, req.RoomID)
	return response.OK(c, fiber.Map{
		"key":       service.ItemKey(req.JobID, req.RoomID),
		"favorited": favorited,
		"favorites": session.Selection.Favorites(),
	})
}

// Select handles POST /api/gallery/select
func (h *GalleryHandler) Select(c *fiber.Ctx) error {
	req, session, err := h.parseToggle(c)
	if err != nil {
		return err
	}
	selected := session.Selection.ToggleSelect(req.JobID, req.RoomID)
	return response.OK(c, fiber.Map{
		"key":      service.ItemKey(req.JobID, req.RoomID),
		"selected": selected,
	})
}

// Compare handles GET /api/gallery/compare?session_id=&floor_plan_id=.
// It resolves the session's compare selection to full items for the
// side-by-side view.
func (h *GalleryHandler) Compare(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Query("session_id"))
	if err != nil {
		return response.NotFound(c, "Session not found")
	}
	floorPlanID := c.Query("floor_plan_id")
	if floorPlanID == "" {
		return response.ValidationError(c, "floor_plan_id is required", nil)
	}

	selected := session.Selection.Selected()
	items, err := h.gallery.Items(c.Context(), floorPlanID, service.GalleryFilter{}, service.SortNewest)
	if err != nil {
		return response.BackendError(c, err.Error())
	}

	var pair []service.RenderItem
	for _, key := range selected {
		for _, item := range items {
			if item.Key() == key {
				pair = append(pair, item)
				break
			}
		}
	}
	return response.OK(c, fiber.Map{"items": pair})
}

func (h *GalleryHandler) parseToggle(c *fiber.Ctx) (*model.GalleryToggleRequest, *service.Session, error) {
	var req model.GalleryToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, nil, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, nil, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	session, err := h.sessions.Get(req.SessionID)
	if err != nil {
		return nil, nil, response.NotFound(c, "Session not found")
	}
	return &req, session, nil
}
