package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/planvision/studio/internal/config"
	"github.com/planvision/studio/internal/model"
)

// Catalog is the opaque collaborator surface for projects and the
// material library. Only the fields the studio reads are decoded.
type Catalog interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListMaterials(ctx context.Context) ([]model.Material, error)
	ListStyles(ctx context.Context) ([]model.StyleInfo, error)
}

// CatalogClient implements Catalog over HTTP against the same backend.
type CatalogClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewCatalogClient(cfg *config.BackendConfig) *CatalogClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CatalogClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// GetProject fetches a project including its parsed floor plan.
func (c *CatalogClient) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var project model.Project
	if err := c.get(ctx, "/api/projects/"+projectID, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListMaterials fetches the material library.
func (c *CatalogClient) ListMaterials(ctx context.Context) ([]model.Material, error) {
	var payload struct {
		Materials []model.Material `json:"materials"`
	}
	if err := c.get(ctx, "/api/materials", &payload); err != nil {
		return nil, err
	}
	return payload.Materials, nil
}

// ListStyles fetches the available style presets.
func (c *CatalogClient) ListStyles(ctx context.Context) ([]model.StyleInfo, error) {
	var payload struct {
		Styles []model.StyleInfo `json:"styles"`
	}
	if err := c.get(ctx, "/api/render/styles", &payload); err != nil {
		return nil, err
	}
	return payload.Styles, nil
}

func (c *CatalogClient) get(ctx context.Context, endpoint string, result interface{}) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, result)
}

func (c *CatalogClient) do(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return backendError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
