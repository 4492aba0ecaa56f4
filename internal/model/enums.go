package model

// Job status
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions follow.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Session render phase
type RenderPhase string

const (
	PhaseConfigure RenderPhase = "configure"
	PhaseRendering RenderPhase = "rendering"
	PhaseResults   RenderPhase = "results"
)

// Surface types
type SurfaceType string

const (
	SurfaceFloor   SurfaceType = "floor"
	SurfaceWall    SurfaceType = "wall"
	SurfaceCeiling SurfaceType = "ceiling"
)

var ValidSurfaceTypes = []SurfaceType{
	SurfaceFloor, SurfaceWall, SurfaceCeiling,
}

// Material categories
type MaterialCategory string

const (
	CategoryWood     MaterialCategory = "wood"
	CategoryStone    MaterialCategory = "stone"
	CategoryMetal    MaterialCategory = "metal"
	CategoryFabric   MaterialCategory = "fabric"
	CategoryCeramic  MaterialCategory = "ceramic"
	CategoryConcrete MaterialCategory = "concrete"
	CategoryPaint    MaterialCategory = "paint"
)

// Style presets
type StylePreset string

const (
	StyleModern       StylePreset = "modern"
	StyleRustic       StylePreset = "rustic"
	StyleIndustrial   StylePreset = "industrial"
	StyleScandinavian StylePreset = "scandinavian"
	StyleTraditional  StylePreset = "traditional"
	StyleMinimalist   StylePreset = "minimalist"
)

var ValidStylePresets = []StylePreset{
	StyleModern, StyleRustic, StyleIndustrial,
	StyleScandinavian, StyleTraditional, StyleMinimalist,
}

// Lighting modes
type Lighting string

const (
	LightingNatural  Lighting = "natural"
	LightingWarm     Lighting = "warm"
	LightingCool     Lighting = "cool"
	LightingDramatic Lighting = "dramatic"
)

// Time of day
type TimeOfDay string

const (
	TimeDay     TimeOfDay = "day"
	TimeEvening TimeOfDay = "evening"
	TimeNight   TimeOfDay = "night"
)

// Render error types
type RenderErrorType string

const (
	ErrorContentPolicy RenderErrorType = "content_policy"
	ErrorRateLimit     RenderErrorType = "rate_limit"
	ErrorTimeout       RenderErrorType = "timeout"
	ErrorUnknown       RenderErrorType = "unknown"
)
