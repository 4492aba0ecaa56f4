package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/planvision/studio/internal/service"
)

// ArchiveWorker downloads completed renders into the local output
// directory before the provider URLs expire.
type ArchiveWorker struct {
	archive    *service.ArchiveService
	httpClient *http.Client
	outputDir  string
}

// NewArchiveWorker creates an archive worker writing under outputDir.
func NewArchiveWorker(archive *service.ArchiveService, outputDir string) *ArchiveWorker {
	return &ArchiveWorker{
		archive: archive,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		outputDir: outputDir,
	}
}

// ProcessTask handles one render:archive task.
func (w *ArchiveWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.ArchiveTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal archive payload: %w", err)
	}

	log.Printf("Archiving render %s/%s (%s)", payload.JobID, payload.RoomID, payload.RoomName)

	path, err := w.download(ctx, payload)
	if err != nil {
		return err
	}

	if err := w.archive.RecordLocalPath(ctx, payload.JobID, payload.RoomID, path); err != nil {
		log.Printf("Failed to record archive path for %s/%s: %v", payload.JobID, payload.RoomID, err)
	}

	log.Printf("Archived render %s/%s → %s", payload.JobID, payload.RoomID, path)
	return nil
}

func (w *ArchiveWorker) download(ctx context.Context, payload service.ArchiveTaskPayload) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.ImageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("image fetch failed: HTTP %d", resp.StatusCode)
	}

	jobDir := filepath.Join(w.outputDir, payload.JobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	path := filepath.Join(jobDir, payload.RoomID+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return path, nil
}
