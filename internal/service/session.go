package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planvision/studio/internal/client"
)

// Session bundles the per-session state: one orchestrator, one
// room-materials store, one gallery selection. State lives on the session,
// never at module level.
type Session struct {
	ID           string
	FloorPlanID  string
	Orchestrator *Orchestrator
	Materials    *RoomMaterialsStore
	Selection    *GallerySelection
	CreatedAt    time.Time

	mu sync.Mutex
}

// SetFloorPlan records which floor plan this session is configuring.
func (s *Session) SetFloorPlan(id string) {
	s.mu.Lock()
	s.FloorPlanID = id
	s.mu.Unlock()
}

// FloorPlan returns the session's floor plan id.
func (s *Session) FloorPlan() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FloorPlanID
}

// SessionManager creates, looks up and closes studio sessions.
type SessionManager struct {
	backend  client.RenderBackend
	sink     ProgressSink
	archiver Archiver
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(backend client.RenderBackend, sink ProgressSink, archiver Archiver, interval time.Duration) *SessionManager {
	return &SessionManager{
		backend:  backend,
		sink:     sink,
		archiver: archiver,
		interval: interval,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session in the configure phase.
func (m *SessionManager) Create() *Session {
	id := uuid.New().String()
	session := &Session{
		ID:           id,
		Orchestrator: NewOrchestrator(id, m.backend, m.sink, m.archiver, m.interval),
		Materials:    NewRoomMaterialsStore(),
		Selection:    NewGallerySelection(),
		CreatedAt:    time.Now(),
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()
	return session
}

// Get looks up a session by id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	return session, nil
}

// Close tears a session down; the orchestrator's timer is stopped
// unconditionally.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found")
	}
	session.Orchestrator.Close()
	return nil
}

// CloseAll tears down every session, for shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Orchestrator.Close()
	}
}
