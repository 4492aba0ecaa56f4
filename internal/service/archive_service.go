package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/planvision/studio/internal/model"
)

const TaskTypeArchive = "render:archive"

// ArchiveTaskPayload is one room render to pull down before its provider
// URL expires.
type ArchiveTaskPayload struct {
	JobID    string `json:"jobId"`
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
	ImageURL string `json:"imageUrl"`
}

// ArchiveService enqueues local archival of completed renders. Provider
// image URLs are short-lived, so every successful result of a completed
// job is downloaded into the local output directory by the archive worker.
// Archival is bookkeeping around the lifecycle, never part of it: enqueue
// failures only log.
type ArchiveService struct {
	asynqClient *asynq.Client
	redis       *redis.Client
}

func NewArchiveService(asynqClient *asynq.Client, redisClient *redis.Client) *ArchiveService {
	return &ArchiveService{
		asynqClient: asynqClient,
		redis:       redisClient,
	}
}

// EnqueueJobArchive schedules one archive task per successful render of a
// completed job.
func (s *ArchiveService) EnqueueJobArchive(job *model.BatchRenderJob) {
	if s == nil || s.asynqClient == nil || job == nil {
		return
	}
	for _, result := range job.Results {
		payload := ArchiveTaskPayload{
			JobID:    job.ID,
			RoomID:   result.RoomID,
			RoomName: result.RoomName,
			ImageURL: result.ImageURL,
		}
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Failed to marshal archive payload for job %s: %v", job.ID, err)
			continue
		}
		task := asynq.NewTask(TaskTypeArchive, data)
		if _, err := s.asynqClient.Enqueue(task,
			asynq.Queue("archive"),
			asynq.MaxRetry(3),
			asynq.Retention(24*time.Hour),
		); err != nil {
			log.Printf("Failed to enqueue archive task for job %s room %s: %v",
				job.ID, result.RoomID, err)
		}
	}
}

// LocalPath returns the archived local path for a render, if the worker
// has processed it.
func (s *ArchiveService) LocalPath(ctx context.Context, jobID, roomID string) (string, bool) {
	if s == nil || s.redis == nil {
		return "", false
	}
	path, err := s.redis.Get(ctx, archiveKey(jobID, roomID)).Result()
	if err != nil {
		return "", false
	}
	return path, true
}

// RecordLocalPath stores the archived path for a render (called by the
// worker).
func (s *ArchiveService) RecordLocalPath(ctx context.Context, jobID, roomID, path string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.Set(ctx, archiveKey(jobID, roomID), path, 24*time.Hour).Err()
}

func archiveKey(jobID, roomID string) string {
	return fmt.Sprintf("archive:%s:%s", jobID, roomID)
}
