package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/planvision/studio/internal/config"
	"github.com/planvision/studio/internal/model"
)

// RenderBackend is the surface of the external render service the studio
// consumes. The batch job queue itself lives behind this interface.
type RenderBackend interface {
	StartBatch(ctx context.Context, req *model.BatchRenderRequest) (*model.BatchRenderJob, error)
	GetBatchJob(ctx context.Context, jobID string) (*model.BatchRenderJob, error)
	CancelBatch(ctx context.Context, jobID string) (*model.BatchCancelResponse, error)
	ListBatchJobs(ctx context.Context, filter model.JobListFilter) (*model.BatchJobList, error)
	DeleteBatchJob(ctx context.Context, jobID string) (*model.BatchCancelResponse, error)
	RenderRoom(ctx context.Context, req *model.RoomRenderRequest) (*model.RoomRenderResult, error)
	PipelineStatus(ctx context.Context) (*model.PipelineStatus, error)
}

// RenderClient implements RenderBackend over HTTP.
type RenderClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// NewRenderClient creates a render backend client. The limiter throttles
// outgoing calls so a misbehaving caller cannot hammer the backend.
func NewRenderClient(cfg *config.BackendConfig) *RenderClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	return &RenderClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// StartBatch submits a multi-room render request.
func (c *RenderClient) StartBatch(ctx context.Context, req *model.BatchRenderRequest) (*model.BatchRenderJob, error) {
	var job model.BatchRenderJob
	if err := c.post(ctx, "/api/render/batch", req, &job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job from backend: %w", err)
	}
	return &job, nil
}

// GetBatchJob fetches the current snapshot of a batch job.
func (c *RenderClient) GetBatchJob(ctx context.Context, jobID string) (*model.BatchRenderJob, error) {
	var job model.BatchRenderJob
	if err := c.get(ctx, "/api/render/batch/"+jobID, &job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job from backend: %w", err)
	}
	return &job, nil
}

// CancelBatch requests cancellation of a batch job.
func (c *RenderClient) CancelBatch(ctx context.Context, jobID string) (*model.BatchCancelResponse, error) {
	var result model.BatchCancelResponse
	if err := c.post(ctx, "/api/render/batch/"+jobID+"/cancel", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListBatchJobs lists batch jobs, optionally filtered.
func (c *RenderClient) ListBatchJobs(ctx context.Context, filter model.JobListFilter) (*model.BatchJobList, error) {
	q := url.Values{}
	if filter.FloorPlanID != "" {
		q.Set("floor_plan_id", filter.FloorPlanID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	endpoint := "/api/render/batch/jobs/list"
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var list model.BatchJobList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DeleteBatchJob removes a batch job from the backend.
func (c *RenderClient) DeleteBatchJob(ctx context.Context, jobID string) (*model.BatchCancelResponse, error) {
	var result model.BatchCancelResponse
	if err := c.delete(ctx, "/api/render/batch/"+jobID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RenderRoom renders a single room without creating a batch job.
func (c *RenderClient) RenderRoom(ctx context.Context, req *model.RoomRenderRequest) (*model.RoomRenderResult, error) {
	var result model.RoomRenderResult
	if err := c.post(ctx, "/api/render/room", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PipelineStatus reports render pipeline availability.
func (c *RenderClient) PipelineStatus(ctx context.Context) (*model.PipelineStatus, error) {
	var status model.PipelineStatus
	if err := c.get(ctx, "/api/render/pipeline/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// post sends a POST request with JSON body
func (c *RenderClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *RenderClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// delete sends a DELETE request and parses JSON response
func (c *RenderClient) delete(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *RenderClient) doRequest(req *http.Request, result interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("request throttled: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Printf("[Render API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Render API] ✗ %s %s request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Render API] ✗ %s %s failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Render API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return backendError(resp.StatusCode, respBody)
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Render API] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// backendError maps a non-2xx response to an error carrying the backend's
// detail message verbatim, falling back to "HTTP <status>".
func backendError(status int, body []byte) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return fmt.Errorf("%s", payload.Detail)
	}
	return fmt.Errorf("HTTP %d", status)
}
