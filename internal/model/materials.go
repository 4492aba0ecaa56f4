package model

// Room is the opaque room shape from a parsed floor plan. CAD parsing
// happens server-side; the studio only keys off id and name.
type Room struct {
	ID   string  `json:"id" validate:"required"`
	Name string  `json:"name" validate:"required"`
	Type string  `json:"type,omitempty"`
	Area float64 `json:"area,omitempty"`
}

// FloorPlan is the opaque parsed-plan shape from the project service.
type FloorPlan struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Rooms []Room `json:"rooms"`
}

// Project wraps a floor plan with project metadata.
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	FloorPlan *FloorPlan `json:"floor_plan,omitempty"`
}

// Material is the backend material-library entry. Only the fields the
// selection UI needs are decoded.
type Material struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    MaterialCategory `json:"category"`
	Tags        []string         `json:"tags,omitempty"`
	Styles      []string         `json:"styles,omitempty"`
	SuitableFor []string         `json:"suitable_for,omitempty"`
}

// MaterialAssignment maps one surface to a material. The surface id is
// deterministic, "<room_id>_<surface_type>", so re-submitting overwrites
// rather than duplicates.
type MaterialAssignment struct {
	SurfaceID   string      `json:"surface_id" validate:"required"`
	MaterialID  string      `json:"material_id" validate:"required"`
	RoomID      string      `json:"room_id" validate:"required"`
	SurfaceType SurfaceType `json:"surface_type" validate:"required,oneof=floor wall ceiling"`
}

// RoomMaterials holds one room's floor/wall/ceiling selections. Empty
// string means unset; unset surfaces are omitted from request payloads.
type RoomMaterials struct {
	Floor   string `json:"floor,omitempty"`
	Wall    string `json:"wall,omitempty"`
	Ceiling string `json:"ceiling,omitempty"`
}

// StyleInfo describes a selectable style preset for the UI.
type StyleInfo struct {
	ID          StylePreset `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}
