package model

// UI-facing request shapes served by the studio itself.

// InitRoomsRequest seeds a session's configuration model, either from a
// project's parsed floor plan or from an inline room list.
type InitRoomsRequest struct {
	ProjectID string `json:"project_id"`
	Rooms     []Room `json:"rooms" validate:"omitempty,dive"`
}

// SetMaterialRequest replaces one surface selection for a room.
type SetMaterialRequest struct {
	Surface    SurfaceType `json:"surface" validate:"required,oneof=floor wall ceiling"`
	MaterialID string      `json:"material_id" validate:"required"`
}

// StartRenderRequest triggers a batch render from the session's current
// configuration.
type StartRenderRequest struct {
	StylePreset      StylePreset `json:"style_preset" validate:"required,oneof=modern rustic industrial scandinavian traditional minimalist"`
	Lighting         Lighting    `json:"lighting" validate:"required,oneof=natural warm cool dramatic"`
	TimeOfDay        TimeOfDay   `json:"time_of_day" validate:"required,oneof=day evening night"`
	Size             string      `json:"size" validate:"omitempty,oneof=1024x1024 1792x1024 1024x1792"`
	Quality          string      `json:"quality" validate:"omitempty,oneof=standard hd"`
	AdditionalPrompt string      `json:"additional_prompt"`
}

// GalleryToggleRequest toggles a favorite or compare selection for one
// render item, identified by its composite (job, room) key.
type GalleryToggleRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	JobID     string `json:"job_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
}

// SessionInfo is returned on session creation.
type SessionInfo struct {
	SessionID string `json:"session_id"`
}

// RoomConfigView is the UI view of one room's current selections.
type RoomConfigView struct {
	Room      Room          `json:"room"`
	Materials RoomMaterials `json:"materials"`
}
