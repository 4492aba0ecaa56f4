package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypePhase    = "phase"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage carries one polled job snapshot to session subscribers.
type WSProgressMessage struct {
	Type           string    `json:"type"`
	JobID          string    `json:"jobId"`
	Status         JobStatus `json:"status"`
	Progress       float64   `json:"progress"`
	CompletedRooms int       `json:"completedRooms"`
	TotalRooms     int       `json:"totalRooms"`
}

// WSPhaseMessage announces a phase transition.
type WSPhaseMessage struct {
	Type  string      `json:"type"`
	Phase RenderPhase `json:"phase"`
	JobID string      `json:"jobId,omitempty"`
}

// WSErrorMessage represents a configure-phase error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
