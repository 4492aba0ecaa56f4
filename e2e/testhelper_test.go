package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/planvision/studio/internal/client"
	"github.com/planvision/studio/internal/config"
	"github.com/planvision/studio/internal/handler"
	"github.com/planvision/studio/internal/middleware"
	"github.com/planvision/studio/internal/model"
	"github.com/planvision/studio/internal/service"
)

// mockBackend fakes the external render/project API. Each batch job
// advances pending → running → completed across successive polls.
type mockBackend struct {
	mu       sync.Mutex
	jobs     map[string]*mockJob
	requests []model.BatchRenderRequest
}

type mockJob struct {
	req   model.BatchRenderRequest
	polls int
}

func newMockBackend() *mockBackend {
	return &mockBackend{jobs: make(map[string]*mockJob)}
}

func (m *mockBackend) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/render/batch", func(w http.ResponseWriter, r *http.Request) {
		var req model.BatchRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"detail":"invalid payload"}`, http.StatusUnprocessableEntity)
			return
		}
		id := uuid.New().String()
		m.mu.Lock()
		m.jobs[id] = &mockJob{req: req}
		m.requests = append(m.requests, req)
		m.mu.Unlock()

		job := model.BatchRenderJob{
			ID:          id,
			Status:      model.JobStatusPending,
			FloorPlanID: req.FloorPlanID,
			TotalRooms:  len(req.Rooms),
			CreatedAt:   time.Now(),
		}
		json.NewEncoder(w).Encode(job)
	})

	mux.HandleFunc("GET /api/render/batch/jobs/list", func(w http.ResponseWriter, r *http.Request) {
		floorPlanID := r.URL.Query().Get("floor_plan_id")
		m.mu.Lock()
		var jobs []model.BatchRenderJob
		for id, mj := range m.jobs {
			snap := m.snapshotLocked(id, mj)
			if snap.Status == model.JobStatusCompleted && (floorPlanID == "" || snap.FloorPlanID == floorPlanID) {
				jobs = append(jobs, snap)
			}
		}
		m.mu.Unlock()
		json.NewEncoder(w).Encode(model.BatchJobList{Jobs: jobs, Total: len(jobs)})
	})

	mux.HandleFunc("GET /api/render/batch/{id}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		mj, ok := m.jobs[r.PathValue("id")]
		if !ok {
			m.mu.Unlock()
			http.Error(w, `{"detail":"Batch job not found"}`, http.StatusNotFound)
			return
		}
		mj.polls++
		snap := m.snapshotLocked(r.PathValue("id"), mj)
		m.mu.Unlock()
		json.NewEncoder(w).Encode(snap)
	})

	mux.HandleFunc("POST /api/render/batch/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.BatchCancelResponse{Status: "cancelled", ID: r.PathValue("id")})
	})

	mux.HandleFunc("GET /api/materials", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]model.Material{"materials": {
			{ID: "oak", Name: "Oak", Category: model.CategoryWood},
			{ID: "white-paint", Name: "White Paint", Category: model.CategoryPaint},
			{ID: "marble", Name: "Marble", Category: model.CategoryStone},
		}})
	})

	mux.HandleFunc("GET /api/render/styles", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]model.StyleInfo{"styles": {
			{ID: model.StyleModern, Name: "Modern"},
			{ID: model.StyleRustic, Name: "Rustic"},
		}})
	})

	mux.HandleFunc("GET /api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.Project{
			ID:   r.PathValue("id"),
			Name: "Demo House",
			FloorPlan: &model.FloorPlan{
				ID: "plan-1",
				Rooms: []model.Room{
					{ID: "living", Name: "Living Room"},
					{ID: "kitchen", Name: "Kitchen"},
					{ID: "bath", Name: "Bathroom"},
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// snapshotLocked derives the job's current snapshot from its poll count:
// a few running polls, then completed. Caller holds m.mu.
func (m *mockBackend) snapshotLocked(id string, mj *mockJob) model.BatchRenderJob {
	total := len(mj.req.Rooms)
	job := model.BatchRenderJob{
		ID:          id,
		FloorPlanID: mj.req.FloorPlanID,
		TotalRooms:  total,
		CreatedAt:   time.Now().Add(-time.Minute),
	}
	switch {
	case mj.polls == 0:
		job.Status = model.JobStatusPending
	case mj.polls < 4:
		job.Status = model.JobStatusRunning
		done := mj.polls - 1
		if done > total {
			done = total
		}
		job.CompletedRooms = done
		job.SuccessfulRenders = done
		if total > 0 {
			job.Progress = float64(done) / float64(total) * 100
		}
	default:
		job.Status = model.JobStatusCompleted
		job.CompletedRooms = total
		job.SuccessfulRenders = total
		job.Progress = 100
		now := time.Now()
		job.CompletedAt = &now
		for _, room := range mj.req.Rooms {
			job.Results = append(job.Results, model.BatchRenderResult{
				RoomID:    room.ID,
				RoomName:  room.Name,
				ImageURL:  "http://images.local/" + id + "/" + room.ID + ".png",
				CreatedAt: now,
				Config: model.RenderConfig{
					StylePreset: mj.req.StylePreset,
					Lighting:    mj.req.Lighting,
					TimeOfDay:   mj.req.TimeOfDay,
				},
			})
		}
	}
	return job
}

func (m *mockBackend) lastRequest(t *testing.T) model.BatchRenderRequest {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("no batch request reached the backend")
	}
	return m.requests[len(m.requests)-1]
}

type testApp struct {
	app     *fiber.App
	backend *mockBackend
}

// setupApp wires the routes the way main.go does, pointed at the mock
// backend. Redis-backed pieces run with a nil client and degrade to their
// direct paths; archival is off.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	backend := newMockBackend()
	srv := backend.server(t)

	backendCfg := &config.BackendConfig{
		BaseURL:        srv.URL,
		Timeout:        5,
		RequestsPerSec: 1000,
	}
	renderBackend := client.NewRenderClient(backendCfg)
	catalog := client.NewCatalogClient(backendCfg)

	validate := validator.New()

	// Fast polling so lifecycle tests finish quickly.
	sessions := service.NewSessionManager(renderBackend, nil, nil, 5*time.Millisecond)
	t.Cleanup(sessions.CloseAll)
	galleryService := service.NewGalleryService(renderBackend, nil, nil)

	sessionHandler := handler.NewSessionHandler(sessions)
	renderHandler := handler.NewRenderHandler(sessions, renderBackend, galleryService, validate)
	materialsHandler := handler.NewMaterialsHandler(sessions, catalog, validate)
	galleryHandler := handler.NewGalleryHandler(galleryService, sessions, validate)

	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	api.Post("/sessions", sessionHandler.Create)
	session := api.Group("/sessions/:sessionId")
	session.Delete("/", sessionHandler.Close)

	session.Post("/rooms", materialsHandler.InitRooms)
	session.Get("/rooms", materialsHandler.GetRooms)
	session.Put("/rooms/:roomId/material", materialsHandler.SetMaterial)

	session.Post("/render/start", rateLimiter.BatchStartLimit(10000), renderHandler.Start)
	session.Get("/render/state", renderHandler.State)
	session.Post("/render/cancel", renderHandler.Cancel)
	session.Post("/render/reset", renderHandler.Reset)
	session.Post("/render/dismiss-error", renderHandler.DismissError)

	api.Post("/render/room", rateLimiter.RoomRenderLimit(10000), renderHandler.RoomRender)
	api.Get("/render/pipeline/status", renderHandler.PipelineStatus)
	api.Delete("/render/jobs/:jobId", renderHandler.DeleteJob)

	api.Get("/materials", materialsHandler.ListMaterials)
	api.Get("/styles", materialsHandler.ListStyles)

	api.Get("/gallery", galleryHandler.Items)
	api.Post("/gallery/favorite", galleryHandler.Favorite)
	api.Post("/gallery/select", galleryHandler.Select)
	api.Get("/gallery/compare", galleryHandler.Compare)

	return &testApp{app: app, backend: backend}
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// createSession creates a session and returns its id.
func createSession(t *testing.T, ta *testApp) string {
	t.Helper()
	resp, err := doRequest(ta.app, http.MethodPost, "/api/sessions", "")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	result := parseJSON(t, resp)
	id, _ := result["session_id"].(string)
	if id == "" {
		t.Fatal("no session_id in response")
	}
	return id
}
