package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planvision/studio/internal/client"
	"github.com/planvision/studio/internal/model"
)

// RenderItem is one render result flattened out of its job, carrying the
// job identity alongside so the same room rendered in two jobs stays two
// distinct items.
type RenderItem struct {
	model.BatchRenderResult
	JobID        string    `json:"job_id"`
	JobCreatedAt time.Time `json:"job_created_at"`

	// LocalPath is set when the archive worker has already pulled the
	// image down; the UI prefers it over the expiring provider URL.
	LocalPath string `json:"local_path,omitempty"`
}

// Key returns the item's stable composite identity, "<job_id>-<room_id>".
func (i RenderItem) Key() string {
	return ItemKey(i.JobID, i.RoomID)
}

// ItemKey builds the composite selection/favorite key.
func ItemKey(jobID, roomID string) string {
	return fmt.Sprintf("%s-%s", jobID, roomID)
}

// GalleryFilter narrows flattened items. Both fields are optional and
// compose with AND; matching is exact.
type GalleryFilter struct {
	Room  string
	Style string
}

// Sort keys for the gallery.
type GallerySort string

const (
	SortNewest GallerySort = "newest"
	SortOldest GallerySort = "oldest"
	SortRoom   GallerySort = "room"
)

// RoomGroup is one room's items for the timeline view.
type RoomGroup struct {
	RoomName string       `json:"room_name"`
	Items    []RenderItem `json:"items"`
}

// Flatten expands every result of every job into RenderItems, in job order
// then result order.
func Flatten(jobs []model.BatchRenderJob) []RenderItem {
	var items []RenderItem
	for _, job := range jobs {
		for _, result := range job.Results {
			items = append(items, RenderItem{
				BatchRenderResult: result,
				JobID:             job.ID,
				JobCreatedAt:      job.CreatedAt,
			})
		}
	}
	return items
}

// FilterItems keeps items matching the filter.
func FilterItems(items []RenderItem, filter GalleryFilter) []RenderItem {
	if filter.Room == "" && filter.Style == "" {
		return items
	}
	var out []RenderItem
	for _, item := range items {
		if filter.Room != "" && item.RoomName != filter.Room {
			continue
		}
		if filter.Style != "" && string(item.Config.StylePreset) != filter.Style {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SortItems orders items by the given key. The sort is explicitly stable:
// items with equal keys keep their flatten order.
func SortItems(items []RenderItem, key GallerySort) []RenderItem {
	out := make([]RenderItem, len(items))
	copy(out, items)

	switch key {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	case SortRoom:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RoomName < out[j].RoomName
		})
	default: // SortNewest
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}

// GroupByRoom groups items by room name, groups ordered by first
// appearance in the input. Within each group items are always
// newest-first, independent of the outer sort; that fixed order is what
// the timeline view relies on.
func GroupByRoom(items []RenderItem) []RoomGroup {
	index := make(map[string]int)
	var groups []RoomGroup
	for _, item := range items {
		i, ok := index[item.RoomName]
		if !ok {
			i = len(groups)
			index[item.RoomName] = i
			groups = append(groups, RoomGroup{RoomName: item.RoomName})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	for i := range groups {
		groups[i].Items = SortItems(groups[i].Items, SortNewest)
	}
	return groups
}

// GallerySelection is one session's local-only favorite and compare state,
// keyed by composite item key. Never persisted to the backend.
type GallerySelection struct {
	mu        sync.Mutex
	favorites map[string]bool
	selected  []string
}

// compareSlots caps selection at a side-by-side pair.
const compareSlots = 2

func NewGallerySelection() *GallerySelection {
	return &GallerySelection{
		favorites: make(map[string]bool),
	}
}

// ToggleFavorite flips the favorite flag for an item and reports the new
// state.
func (g *GallerySelection) ToggleFavorite(jobID, roomID string) bool {
	key := ItemKey(jobID, roomID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.favorites[key] {
		delete(g.favorites, key)
		return false
	}
	g.favorites[key] = true
	return true
}

// IsFavorite reports whether an item is favorited.
func (g *GallerySelection) IsFavorite(jobID, roomID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.favorites[ItemKey(jobID, roomID)]
}

// Favorites returns the favorited keys.
func (g *GallerySelection) Favorites() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.favorites))
	for key := range g.favorites {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// ToggleSelect adds or removes an item from the compare selection. When
// both slots are taken the oldest selection is evicted.
func (g *GallerySelection) ToggleSelect(jobID, roomID string) []string {
	key := ItemKey(jobID, roomID)
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, existing := range g.selected {
		if existing == key {
			g.selected = append(g.selected[:i], g.selected[i+1:]...)
			return g.selectedCopyLocked()
		}
	}
	g.selected = append(g.selected, key)
	if len(g.selected) > compareSlots {
		g.selected = g.selected[len(g.selected)-compareSlots:]
	}
	return g.selectedCopyLocked()
}

// Selected returns the current compare selection in selection order.
func (g *GallerySelection) Selected() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selectedCopyLocked()
}

func (g *GallerySelection) selectedCopyLocked() []string {
	out := make([]string, len(g.selected))
	copy(out, g.selected)
	return out
}

// GalleryService reads completed jobs from the backend through a
// short-TTL redis query cache and shapes them for the gallery views. The
// cache is the only client-side persistence this layer has; on any redis
// error it degrades to a direct backend call.
type GalleryService struct {
	backend client.RenderBackend
	redis   *redis.Client
	archive *ArchiveService
	ttl     time.Duration
}

const galleryCacheTTL = 15 * time.Second

func NewGalleryService(backend client.RenderBackend, redisClient *redis.Client, archive *ArchiveService) *GalleryService {
	return &GalleryService{
		backend: backend,
		redis:   redisClient,
		archive: archive,
		ttl:     galleryCacheTTL,
	}
}

// Jobs lists completed batch jobs for a floor plan, cached briefly.
func (s *GalleryService) Jobs(ctx context.Context, floorPlanID string) ([]model.BatchRenderJob, error) {
	cacheKey := fmt.Sprintf("gallery:jobs:%s", floorPlanID)

	if s.redis != nil {
		if data, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var jobs []model.BatchRenderJob
			if err := json.Unmarshal(data, &jobs); err == nil {
				return jobs, nil
			}
		}
	}

	list, err := s.backend.ListBatchJobs(ctx, model.JobListFilter{
		FloorPlanID: floorPlanID,
		Status:      model.JobStatusCompleted,
	})
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(list.Jobs); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, s.ttl).Err(); err != nil {
				log.Printf("Gallery cache write failed (ignored): %v", err)
			}
		}
	}
	return list.Jobs, nil
}

// Items returns flattened, filtered, sorted gallery items.
func (s *GalleryService) Items(ctx context.Context, floorPlanID string, filter GalleryFilter, sortKey GallerySort) ([]RenderItem, error) {
	jobs, err := s.Jobs(ctx, floorPlanID)
	if err != nil {
		return nil, err
	}
	items := SortItems(FilterItems(Flatten(jobs), filter), sortKey)
	for i := range items {
		if path, ok := s.archive.LocalPath(ctx, items[i].JobID, items[i].RoomID); ok {
			items[i].LocalPath = path
		}
	}
	return items, nil
}

// Grouped returns the timeline view: filtered and sorted items grouped by
// room.
func (s *GalleryService) Grouped(ctx context.Context, floorPlanID string, filter GalleryFilter, sortKey GallerySort) ([]RoomGroup, error) {
	items, err := s.Items(ctx, floorPlanID, filter, sortKey)
	if err != nil {
		return nil, err
	}
	return GroupByRoom(items), nil
}

// Invalidate drops the cached listing for a floor plan, e.g. after a job
// delete.
func (s *GalleryService) Invalidate(ctx context.Context, floorPlanID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, fmt.Sprintf("gallery:jobs:%s", floorPlanID)).Err(); err != nil {
		log.Printf("Gallery cache invalidate failed (ignored): %v", err)
	}
}
