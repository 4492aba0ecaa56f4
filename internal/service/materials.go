package service

import (
	"fmt"
	"sync"

	"github.com/planvision/studio/internal/model"
)

// surfaceCategories is the fixed taxonomy of which material categories are
// eligible for each surface. It is a table, not logic: the UI partitions
// depend on exactly these sets.
var surfaceCategories = map[model.SurfaceType][]model.MaterialCategory{
	model.SurfaceFloor:   {model.CategoryWood, model.CategoryStone, model.CategoryCeramic, model.CategoryConcrete},
	model.SurfaceWall:    {model.CategoryPaint, model.CategoryConcrete},
	model.SurfaceCeiling: {model.CategoryPaint},
}

// CategoriesForSurface returns the material categories eligible for a
// surface type.
func CategoriesForSurface(surface model.SurfaceType) []model.MaterialCategory {
	cats := surfaceCategories[surface]
	out := make([]model.MaterialCategory, len(cats))
	copy(out, cats)
	return out
}

// MaterialsForSurface filters a material list down to those eligible for
// the given surface. Order is preserved.
func MaterialsForSurface(materials []model.Material, surface model.SurfaceType) []model.Material {
	allowed := make(map[model.MaterialCategory]bool)
	for _, cat := range surfaceCategories[surface] {
		allowed[cat] = true
	}
	var out []model.Material
	for _, m := range materials {
		if allowed[m.Category] {
			out = append(out, m)
		}
	}
	return out
}

// SurfaceID derives the deterministic surface key for an assignment, so a
// re-submitted selection overwrites rather than duplicates.
func SurfaceID(roomID string, surface model.SurfaceType) string {
	return fmt.Sprintf("%s_%s", roomID, surface)
}

// RoomMaterialsStore is one session's render configuration model: the
// per-room material selections plus the room list they were seeded from.
// Mutated only by direct user actions, never by background polling.
type RoomMaterialsStore struct {
	mu        sync.Mutex
	rooms     []model.Room
	selection map[string]*model.RoomMaterials
}

func NewRoomMaterialsStore() *RoomMaterialsStore {
	return &RoomMaterialsStore{
		selection: make(map[string]*model.RoomMaterials),
	}
}

// Initialize seeds the store from a floor plan's room list. Idempotent per
// room id: selections already made for rooms still present are kept;
// rooms that left the plan are dropped.
func (s *RoomMaterialsStore) Initialize(rooms []model.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*model.RoomMaterials, len(rooms))
	for _, room := range rooms {
		if existing, ok := s.selection[room.ID]; ok {
			next[room.ID] = existing
			continue
		}
		next[room.ID] = &model.RoomMaterials{}
	}
	s.rooms = make([]model.Room, len(rooms))
	copy(s.rooms, rooms)
	s.selection = next
}

// SetMaterial replaces one surface selection for one room. Other rooms and
// surfaces are untouched.
func (s *RoomMaterialsStore) SetMaterial(roomID string, surface model.SurfaceType, materialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.selection[roomID]
	if !ok {
		return fmt.Errorf("unknown room %q", roomID)
	}
	switch surface {
	case model.SurfaceFloor:
		rm.Floor = materialID
	case model.SurfaceWall:
		rm.Wall = materialID
	case model.SurfaceCeiling:
		rm.Ceiling = materialID
	default:
		return fmt.Errorf("unknown surface type %q", surface)
	}
	return nil
}

// Rooms returns the seeded room list in floor-plan order.
func (s *RoomMaterialsStore) Rooms() []model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Room, len(s.rooms))
	copy(out, s.rooms)
	return out
}

// Selection returns a copy of the current per-room selections.
func (s *RoomMaterialsStore) Selection() map[string]model.RoomMaterials {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.RoomMaterials, len(s.selection))
	for id, rm := range s.selection {
		out[id] = *rm
	}
	return out
}

// Assignments flattens the selections into the request payload shape.
// Unset surfaces are omitted entirely. Rooms appear in floor-plan order
// and surfaces in floor, wall, ceiling order, so the output is
// deterministic.
func (s *RoomMaterialsStore) Assignments() []model.MaterialAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.MaterialAssignment
	for _, room := range s.rooms {
		rm := s.selection[room.ID]
		if rm == nil {
			continue
		}
		for _, surface := range model.ValidSurfaceTypes {
			var materialID string
			switch surface {
			case model.SurfaceFloor:
				materialID = rm.Floor
			case model.SurfaceWall:
				materialID = rm.Wall
			case model.SurfaceCeiling:
				materialID = rm.Ceiling
			}
			if materialID == "" {
				continue
			}
			out = append(out, model.MaterialAssignment{
				SurfaceID:   SurfaceID(room.ID, surface),
				MaterialID:  materialID,
				RoomID:      room.ID,
				SurfaceType: surface,
			})
		}
	}
	return out
}

// BuildBatchRequest assembles the start-batch payload from the current
// configuration. Returns ErrNoRooms when the store was never initialized
// or the plan has no rooms.
func (s *RoomMaterialsStore) BuildBatchRequest(floorPlanID string, cfg model.RenderConfig) (*model.BatchRenderRequest, error) {
	rooms := s.Rooms()
	if len(rooms) == 0 {
		return nil, ErrNoRooms
	}
	return &model.BatchRenderRequest{
		FloorPlanID:         floorPlanID,
		Rooms:               rooms,
		MaterialAssignments: s.Assignments(),
		StylePreset:         cfg.StylePreset,
		Lighting:            cfg.Lighting,
		TimeOfDay:           cfg.TimeOfDay,
		AdditionalPrompt:    cfg.AdditionalPrompt,
	}, nil
}
