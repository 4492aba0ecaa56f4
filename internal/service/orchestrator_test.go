package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/planvision/studio/internal/model"
)

// fakeBackend scripts poll responses and counts calls so tests can assert
// exactly when polling stops.
type fakeBackend struct {
	mu sync.Mutex

	startJob   *model.BatchRenderJob
	startErr   error
	startCalls int

	snapshots []pollResult
	pollCalls int
	pollGate  chan struct{} // when set, GetBatchJob blocks until closed

	cancelCalls int
	cancelErr   error
}

type pollResult struct {
	job *model.BatchRenderJob
	err error
}

func (f *fakeBackend) StartBatch(ctx context.Context, req *model.BatchRenderRequest) (*model.BatchRenderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return cloneJob(f.startJob), nil
}

func (f *fakeBackend) GetBatchJob(ctx context.Context, jobID string) (*model.BatchRenderJob, error) {
	f.mu.Lock()
	f.pollCalls++
	gate := f.pollGate
	var next pollResult
	if len(f.snapshots) > 1 {
		next = f.snapshots[0]
		f.snapshots = f.snapshots[1:]
	} else if len(f.snapshots) == 1 {
		next = f.snapshots[0]
	} else {
		next = pollResult{err: errors.New("no scripted snapshot")}
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if next.err != nil {
		return nil, next.err
	}
	return cloneJob(next.job), nil
}

func (f *fakeBackend) CancelBatch(ctx context.Context, jobID string) (*model.BatchCancelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &model.BatchCancelResponse{Status: "cancelled", ID: jobID}, nil
}

func (f *fakeBackend) ListBatchJobs(ctx context.Context, filter model.JobListFilter) (*model.BatchJobList, error) {
	return &model.BatchJobList{}, nil
}

func (f *fakeBackend) DeleteBatchJob(ctx context.Context, jobID string) (*model.BatchCancelResponse, error) {
	return &model.BatchCancelResponse{Status: "deleted", ID: jobID}, nil
}

func (f *fakeBackend) RenderRoom(ctx context.Context, req *model.RoomRenderRequest) (*model.RoomRenderResult, error) {
	return &model.RoomRenderResult{}, nil
}

func (f *fakeBackend) PipelineStatus(ctx context.Context) (*model.PipelineStatus, error) {
	return &model.PipelineStatus{Available: true}, nil
}

func (f *fakeBackend) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCalls
}

func jobFixture(id string, status model.JobStatus, completed, total int, results []model.BatchRenderResult) *model.BatchRenderJob {
	job := &model.BatchRenderJob{
		ID:                id,
		Status:            status,
		FloorPlanID:       "plan-1",
		TotalRooms:        total,
		CompletedRooms:    completed,
		SuccessfulRenders: len(results),
		FailedRenders:     completed - len(results),
		Results:           results,
		CreatedAt:         time.Now(),
	}
	if total > 0 {
		job.Progress = float64(completed) / float64(total) * 100
	}
	if status.IsTerminal() {
		now := time.Now()
		job.CompletedAt = &now
	}
	return job
}

func threeRoomRequest() *model.BatchRenderRequest {
	return &model.BatchRenderRequest{
		FloorPlanID: "plan-1",
		Rooms: []model.Room{
			{ID: "living", Name: "Living Room"},
			{ID: "kitchen", Name: "Kitchen"},
			{ID: "bath", Name: "Bathroom"},
		},
		StylePreset: model.StyleModern,
		Lighting:    model.LightingNatural,
		TimeOfDay:   model.TimeDay,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

const testInterval = 5 * time.Millisecond

func TestStart_EmptyRoomsRejectedBeforeNetwork(t *testing.T) {
	backend := &fakeBackend{}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	err := o.Start(context.Background(), &model.BatchRenderRequest{FloorPlanID: "plan-1"})
	if !errors.Is(err, ErrNoRooms) {
		t.Fatalf("expected ErrNoRooms, got %v", err)
	}
	if got := o.State().Phase; got != model.PhaseConfigure {
		t.Errorf("expected configure phase, got %s", got)
	}
	backend.mu.Lock()
	starts := backend.startCalls
	backend.mu.Unlock()
	if starts != 0 || backend.polls() != 0 {
		t.Errorf("expected no network calls, got %d starts and %d polls", starts, backend.polls())
	}
}

func TestStart_BackendFailureStaysConfigure(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("Render pipeline unavailable")}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	err := o.Start(context.Background(), threeRoomRequest())
	if err == nil {
		t.Fatal("expected start error")
	}

	state := o.State()
	if state.Phase != model.PhaseConfigure {
		t.Errorf("expected configure phase, got %s", state.Phase)
	}
	if state.Job != nil {
		t.Error("expected no job after failed start")
	}
	if state.Error != "Render pipeline unavailable" {
		t.Errorf("expected backend detail surfaced, got %q", state.Error)
	}
}

func TestPolling_ReachesResultsAndStops(t *testing.T) {
	results := []model.BatchRenderResult{
		{RoomID: "living", RoomName: "Living Room", ImageURL: "http://img/a"},
		{RoomID: "kitchen", RoomName: "Kitchen", ImageURL: "http://img/b"},
		{RoomID: "bath", RoomName: "Bathroom", ImageURL: "http://img/c"},
	}
	backend := &fakeBackend{
		startJob: jobFixture("job-1", model.JobStatusPending, 0, 3, nil),
		snapshots: []pollResult{
			{job: jobFixture("job-1", model.JobStatusRunning, 2, 3, results[:2])},
			{job: jobFixture("job-1", model.JobStatusCompleted, 3, 3, results)},
		},
	}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := o.State().Phase; got != model.PhaseRendering {
		t.Fatalf("expected rendering phase, got %s", got)
	}

	waitFor(t, time.Second, func() bool {
		return o.State().Phase == model.PhaseResults
	})

	state := o.State()
	if state.Job == nil {
		t.Fatal("expected terminal job snapshot")
	}
	if state.Job.Status != model.JobStatusCompleted {
		t.Errorf("expected completed status, got %s", state.Job.Status)
	}
	if len(state.Job.Results) != 3 {
		t.Errorf("expected 3 results, got %d", len(state.Job.Results))
	}
	if err := state.Job.Validate(); err != nil {
		t.Errorf("terminal snapshot violates invariants: %v", err)
	}

	// No poll may fire after the terminal tick.
	pollsAtTerminal := backend.polls()
	time.Sleep(10 * testInterval)
	if got := backend.polls(); got != pollsAtTerminal {
		t.Errorf("polling continued after terminal status: %d → %d", pollsAtTerminal, got)
	}
}

func TestPolling_TransientFailureIsSilent(t *testing.T) {
	backend := &fakeBackend{
		startJob: jobFixture("job-1", model.JobStatusPending, 0, 2, nil),
		snapshots: []pollResult{
			{err: errors.New("connection refused")},
			{job: jobFixture("job-1", model.JobStatusCompleted, 2, 2, []model.BatchRenderResult{
				{RoomID: "a", RoomName: "A"}, {RoomID: "b", RoomName: "B"},
			})},
		},
	}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return o.State().Phase == model.PhaseResults
	})

	// The failed tick must not have surfaced an error.
	if state := o.State(); state.Error != "" {
		t.Errorf("poll failure surfaced as error: %q", state.Error)
	}
	if backend.polls() < 2 {
		t.Errorf("expected retry after failed poll, got %d polls", backend.polls())
	}
}

func TestCancel_StopsPollingAndRevertsPhase(t *testing.T) {
	backend := &fakeBackend{
		startJob: jobFixture("job-1", model.JobStatusPending, 0, 3, nil),
		snapshots: []pollResult{
			{job: jobFixture("job-1", model.JobStatusRunning, 1, 3, []model.BatchRenderResult{{RoomID: "living"}})},
		},
	}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return backend.polls() >= 1 })

	o.Cancel(context.Background())

	state := o.State()
	if state.Phase != model.PhaseConfigure {
		t.Errorf("expected configure phase after cancel, got %s", state.Phase)
	}
	if state.Job != nil {
		t.Error("expected job cleared after cancel")
	}
	if backend.cancelCalls != 1 {
		t.Errorf("expected one cancel call, got %d", backend.cancelCalls)
	}

	pollsAtCancel := backend.polls()
	time.Sleep(10 * testInterval)
	if got := backend.polls(); got != pollsAtCancel {
		t.Errorf("polling continued after cancel: %d → %d", pollsAtCancel, got)
	}
}

func TestCancel_FailedCancelIsSilent(t *testing.T) {
	backend := &fakeBackend{
		startJob:  jobFixture("job-1", model.JobStatusPending, 0, 1, nil),
		snapshots: []pollResult{{job: jobFixture("job-1", model.JobStatusRunning, 0, 1, nil)}},
		cancelErr: errors.New("backend exploded"),
	}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	o.Cancel(context.Background())

	state := o.State()
	if state.Phase != model.PhaseConfigure {
		t.Errorf("expected configure phase, got %s", state.Phase)
	}
	if state.Error != "" {
		t.Errorf("cancel failure surfaced as error: %q", state.Error)
	}
}

func TestCancel_InFlightPollResponseDiscarded(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{
		startJob:  jobFixture("job-1", model.JobStatusPending, 0, 3, nil),
		snapshots: []pollResult{{job: jobFixture("job-1", model.JobStatusRunning, 2, 3, []model.BatchRenderResult{{RoomID: "a"}, {RoomID: "b"}})}},
	}
	backend.pollGate = gate
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Wait until a poll request is in flight, blocked on the gate.
	waitFor(t, time.Second, func() bool { return backend.polls() >= 1 })

	o.Cancel(context.Background())
	close(gate) // release the stale response

	time.Sleep(5 * testInterval)

	state := o.State()
	if state.Phase != model.PhaseConfigure {
		t.Errorf("stale poll response changed phase: %s", state.Phase)
	}
	if state.Job != nil {
		t.Error("stale poll response resurrected job snapshot")
	}
}

func TestReset_ResultsToConfigure(t *testing.T) {
	backend := &fakeBackend{
		startJob: jobFixture("job-1", model.JobStatusPending, 0, 1, nil),
		snapshots: []pollResult{
			{job: jobFixture("job-1", model.JobStatusCompleted, 1, 1, []model.BatchRenderResult{{RoomID: "living"}})},
		},
	}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	// Reset from configure is a no-op.
	o.Reset()
	if got := o.State().Phase; got != model.PhaseConfigure {
		t.Fatalf("unexpected phase %s", got)
	}

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return o.State().Phase == model.PhaseResults })

	o.Reset()
	state := o.State()
	if state.Phase != model.PhaseConfigure {
		t.Errorf("expected configure after reset, got %s", state.Phase)
	}
	if state.Job != nil {
		t.Error("expected job cleared after reset")
	}
}

func TestStart_RejectsConcurrentRender(t *testing.T) {
	backend := &fakeBackend{
		startJob:  jobFixture("job-1", model.JobStatusPending, 0, 1, nil),
		snapshots: []pollResult{{job: jobFixture("job-1", model.JobStatusRunning, 0, 1, nil)}},
	}
	o := NewOrchestrator("s1", backend, nil, nil, testInterval)
	defer o.Close()

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := o.Start(context.Background(), threeRoomRequest()); !errors.Is(err, ErrRenderInProgress) {
		t.Fatalf("expected ErrRenderInProgress, got %v", err)
	}
}

// archiveSpy records which jobs were handed to the archiver.
type archiveSpy struct {
	mu   sync.Mutex
	jobs []string
}

func (a *archiveSpy) EnqueueJobArchive(job *model.BatchRenderJob) {
	a.mu.Lock()
	a.jobs = append(a.jobs, job.ID)
	a.mu.Unlock()
}

func TestCompletedJobHandedToArchiver(t *testing.T) {
	spy := &archiveSpy{}
	backend := &fakeBackend{
		startJob: jobFixture("job-9", model.JobStatusPending, 0, 1, nil),
		snapshots: []pollResult{
			{job: jobFixture("job-9", model.JobStatusCompleted, 1, 1, []model.BatchRenderResult{{RoomID: "living", ImageURL: "http://img/x"}})},
		},
	}
	o := NewOrchestrator("s1", backend, nil, spy, testInterval)
	defer o.Close()

	if err := o.Start(context.Background(), threeRoomRequest()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return o.State().Phase == model.PhaseResults })

	spy.mu.Lock()
	defer spy.mu.Unlock()
	if len(spy.jobs) != 1 || spy.jobs[0] != "job-9" {
		t.Errorf("expected job-9 archived once, got %v", spy.jobs)
	}
}
