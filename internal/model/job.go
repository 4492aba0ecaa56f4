package model

import (
	"fmt"
	"time"
)

// RenderConfig is the style/lighting snapshot a render was produced with.
type RenderConfig struct {
	Size             string      `json:"size"`
	Quality          string      `json:"quality"`
	StylePreset      StylePreset `json:"style_preset"`
	Lighting         Lighting    `json:"lighting"`
	TimeOfDay        TimeOfDay   `json:"time_of_day"`
	AdditionalPrompt string      `json:"additional_prompt"`
}

// BatchRenderResult is one room's finished render.
type BatchRenderResult struct {
	RoomID        string       `json:"room_id"`
	RoomName      string       `json:"room_name"`
	ImageURL      string       `json:"image_url"`
	RevisedPrompt string       `json:"revised_prompt"`
	CreatedAt     time.Time    `json:"created_at"`
	Config        RenderConfig `json:"config"`
}

// BatchRenderError is one room's failure. Retryable is informational;
// this layer never auto-retries a room.
type BatchRenderError struct {
	RoomID    string          `json:"room_id"`
	RoomName  string          `json:"room_name"`
	ErrorType RenderErrorType `json:"error_type"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable"`
}

// BatchRenderJob is the backend's snapshot of one submitted multi-room
// render request. The studio never mutates fields locally; each poll
// replaces the whole object.
type BatchRenderJob struct {
	ID                string              `json:"id"`
	Status            JobStatus           `json:"status"`
	FloorPlanID       string              `json:"floor_plan_id"`
	TotalRooms        int                 `json:"total_rooms"`
	CompletedRooms    int                 `json:"completed_rooms"`
	Progress          float64             `json:"progress"`
	SuccessfulRenders int                 `json:"successful_renders"`
	FailedRenders     int                 `json:"failed_renders"`
	Results           []BatchRenderResult `json:"results"`
	Errors            []BatchRenderError  `json:"errors"`
	CreatedAt         time.Time           `json:"created_at"`
	CompletedAt       *time.Time          `json:"completed_at"`
}

// Validate checks the counter invariants the backend must hold. Called at
// the client boundary so a malformed snapshot is rejected before it
// replaces session state.
func (j *BatchRenderJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job has no id")
	}
	if j.CompletedRooms > j.TotalRooms {
		return fmt.Errorf("job %s: completed_rooms %d exceeds total_rooms %d",
			j.ID, j.CompletedRooms, j.TotalRooms)
	}
	if j.SuccessfulRenders+j.FailedRenders != j.CompletedRooms {
		return fmt.Errorf("job %s: successful %d + failed %d != completed %d",
			j.ID, j.SuccessfulRenders, j.FailedRenders, j.CompletedRooms)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("job %s: progress %.1f out of range", j.ID, j.Progress)
	}
	if j.Status.IsTerminal() && j.CompletedAt == nil {
		return fmt.Errorf("job %s: terminal status %q without completed_at", j.ID, j.Status)
	}
	return nil
}

// BatchRenderRequest is the start-batch payload sent to the backend.
type BatchRenderRequest struct {
	FloorPlanID         string               `json:"floor_plan_id" validate:"required"`
	Rooms               []Room               `json:"rooms" validate:"required,min=1,dive"`
	MaterialAssignments []MaterialAssignment `json:"material_assignments" validate:"dive"`
	StylePreset         StylePreset          `json:"style_preset" validate:"required,oneof=modern rustic industrial scandinavian traditional minimalist"`
	Lighting            Lighting             `json:"lighting" validate:"required,oneof=natural warm cool dramatic"`
	TimeOfDay           TimeOfDay            `json:"time_of_day" validate:"required,oneof=day evening night"`
	AdditionalPrompt    string               `json:"additional_prompt"`
}

// BatchCancelResponse is the backend's acknowledgement of a cancel.
type BatchCancelResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// BatchJobList is the backend's job listing shape.
type BatchJobList struct {
	Jobs  []BatchRenderJob `json:"jobs"`
	Total int              `json:"total"`
}

// JobListFilter narrows a job listing.
type JobListFilter struct {
	FloorPlanID string
	Status      JobStatus
	Limit       int
}

// RoomRenderRequest is the single-room render payload.
type RoomRenderRequest struct {
	Room                Room                 `json:"room" validate:"required"`
	MaterialAssignments []MaterialAssignment `json:"material_assignments" validate:"dive"`
	StylePreset         StylePreset          `json:"style_preset" validate:"required,oneof=modern rustic industrial scandinavian traditional minimalist"`
	Lighting            Lighting             `json:"lighting" validate:"required,oneof=natural warm cool dramatic"`
	TimeOfDay           TimeOfDay            `json:"time_of_day" validate:"required,oneof=day evening night"`
	AdditionalPrompt    string               `json:"additional_prompt"`
}

// RoomRenderResult is a single-room render response.
type RoomRenderResult struct {
	RoomID        string    `json:"room_id"`
	RoomName      string    `json:"room_name"`
	ImageURL      string    `json:"image_url"`
	RevisedPrompt string    `json:"revised_prompt"`
	CreatedAt     time.Time `json:"created_at"`
}

// PipelineStatus reports render backend availability.
type PipelineStatus struct {
	Available       bool   `json:"available"`
	Provider        string `json:"provider"`
	MaterialsLoaded bool   `json:"materials_loaded"`
	ActiveJobs      int    `json:"active_jobs"`
	PendingJobs     int    `json:"pending_jobs"`
}

// RenderState is the UI-facing snapshot of one session's render lifecycle.
type RenderState struct {
	Phase RenderPhase     `json:"phase"`
	Job   *BatchRenderJob `json:"job,omitempty"`
	Error string          `json:"error,omitempty"`
}
