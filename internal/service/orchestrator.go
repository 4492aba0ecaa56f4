package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/planvision/studio/internal/client"
	"github.com/planvision/studio/internal/model"
)

var (
	// ErrNoRooms is returned before any network call when a start request
	// carries an empty room list.
	ErrNoRooms = errors.New("no rooms to render")

	// ErrRenderInProgress rejects a second start while a job is polling.
	ErrRenderInProgress = errors.New("render already in progress")
)

// ProgressSink receives session-scoped lifecycle notifications. The
// websocket hub implements it; a nil sink disables push.
type ProgressSink interface {
	Progress(sessionID string, job *model.BatchRenderJob)
	PhaseChange(sessionID string, phase model.RenderPhase, jobID string)
	ConfigError(sessionID string, message string)
}

// Archiver accepts completed jobs for local image archival. Best-effort;
// a nil archiver disables it.
type Archiver interface {
	EnqueueJobArchive(job *model.BatchRenderJob)
}

// Orchestrator drives one session's batch render lifecycle through the
// configure → rendering → results phases. It owns the job snapshot and the
// polling schedule; nothing about it is ambient or shared across sessions.
//
// Polling is a chain of single-shot timers: each tick fetches the job once,
// applies the snapshot, and only then schedules the next tick, so at most
// one poll is ever outstanding. A generation counter is bumped whenever
// polling must stop (cancel, terminal status, teardown); a tick or an
// in-flight response from an older generation is discarded.
type Orchestrator struct {
	backend   client.RenderBackend
	sink      ProgressSink
	archiver  Archiver
	interval  time.Duration
	sessionID string

	mu       sync.Mutex
	phase    model.RenderPhase
	job      *model.BatchRenderJob
	lastErr  string
	gen      uint64
	timer    *time.Timer
	starting bool
	closed   bool
}

const defaultPollInterval = 2 * time.Second

// NewOrchestrator creates an orchestrator in the configure phase.
func NewOrchestrator(sessionID string, backend client.RenderBackend, sink ProgressSink, archiver Archiver, interval time.Duration) *Orchestrator {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Orchestrator{
		backend:   backend,
		sink:      sink,
		archiver:  archiver,
		interval:  interval,
		sessionID: sessionID,
		phase:     model.PhaseConfigure,
	}
}

// State returns the current phase, a copy of the job snapshot, and the
// configure-phase error message, if any.
func (o *Orchestrator) State() model.RenderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return model.RenderState{
		Phase: o.phase,
		Job:   cloneJob(o.job),
		Error: o.lastErr,
	}
}

// ClearError dismisses the configure-phase error banner.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	o.lastErr = ""
	o.mu.Unlock()
}

// Start submits a batch render request and enters the rendering phase.
// An empty room list is rejected before any network call. On backend
// failure the error message is recorded for the UI and the phase stays
// configure; no job is created.
func (o *Orchestrator) Start(ctx context.Context, req *model.BatchRenderRequest) error {
	if req == nil || len(req.Rooms) == 0 {
		return ErrNoRooms
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return errors.New("session closed")
	}
	if o.phase == model.PhaseRendering || o.starting {
		o.mu.Unlock()
		return ErrRenderInProgress
	}
	o.starting = true
	o.mu.Unlock()

	job, err := o.backend.StartBatch(ctx, req)

	o.mu.Lock()
	o.starting = false
	if o.closed {
		o.mu.Unlock()
		return errors.New("session closed")
	}
	if err != nil {
		o.phase = model.PhaseConfigure
		o.job = nil
		o.lastErr = err.Error()
		o.mu.Unlock()
		o.notifyError(err.Error())
		return err
	}

	o.job = job
	o.lastErr = ""
	o.phase = model.PhaseRendering
	o.gen++
	gen := o.gen
	o.scheduleLocked(gen, o.interval)
	jobID := job.ID
	o.mu.Unlock()

	o.notifyPhase(model.PhaseRendering, jobID)
	return nil
}

// Cancel aborts the current render. Polling is stopped and the phase
// returns to configure before the cancel request is issued, so no poll can
// race the cancel. The cancel call itself is best-effort: a failure is
// logged and never surfaced, and the backend's actual terminal status is
// not re-fetched.
func (o *Orchestrator) Cancel(ctx context.Context) {
	o.mu.Lock()
	if o.phase != model.PhaseRendering || o.job == nil {
		o.mu.Unlock()
		return
	}
	o.gen++
	o.stopTimerLocked()
	jobID := o.job.ID
	o.job = nil
	o.phase = model.PhaseConfigure
	o.mu.Unlock()

	o.notifyPhase(model.PhaseConfigure, "")

	if _, err := o.backend.CancelBatch(ctx, jobID); err != nil {
		log.Printf("Cancel of batch job %s failed (ignored): %v", jobID, err)
	}
}

// Reset clears the finished job and returns to configure for a new render.
// Only meaningful from the results phase.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.phase != model.PhaseResults {
		o.mu.Unlock()
		return
	}
	o.job = nil
	o.phase = model.PhaseConfigure
	o.mu.Unlock()

	o.notifyPhase(model.PhaseConfigure, "")
}

// Close tears the orchestrator down. Any pending timer is stopped
// unconditionally and in-flight responses are discarded.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.gen++
	o.stopTimerLocked()
	o.mu.Unlock()
}

// pollOnce performs one fetch of the job snapshot. gen pins the polling
// generation this tick belongs to; a mismatch means polling was stopped
// after this tick (or its request) was already in flight.
func (o *Orchestrator) pollOnce(gen uint64) {
	o.mu.Lock()
	if o.closed || gen != o.gen || o.phase != model.PhaseRendering || o.job == nil {
		o.mu.Unlock()
		return
	}
	jobID := o.job.ID
	o.mu.Unlock()

	snap, err := o.backend.GetBatchJob(context.Background(), jobID)

	o.mu.Lock()
	if o.closed || gen != o.gen || o.phase != model.PhaseRendering {
		// Polling stopped while the request was in flight; the response
		// must not overwrite newer state.
		o.mu.Unlock()
		return
	}

	if err != nil {
		// Transient poll failure: skip this tick, retry on the next one.
		log.Printf("Poll of batch job %s failed, retrying next tick: %v", jobID, err)
		o.scheduleLocked(gen, o.interval)
		o.mu.Unlock()
		return
	}

	// Replace the snapshot wholesale; never merge fields.
	o.job = snap

	if snap.Status.IsTerminal() {
		// Stop the chain synchronously in the same tick that observed the
		// terminal status: no timer may fire after this point.
		o.gen++
		o.stopTimerLocked()
		o.phase = model.PhaseResults
		terminal := cloneJob(snap)
		o.mu.Unlock()

		o.notifyProgress(terminal)
		o.notifyPhase(model.PhaseResults, terminal.ID)
		if terminal.Status == model.JobStatusCompleted && o.archiver != nil {
			o.archiver.EnqueueJobArchive(terminal)
		}
		return
	}

	o.scheduleLocked(gen, o.interval)
	progress := cloneJob(snap)
	o.mu.Unlock()

	o.notifyProgress(progress)
}

// scheduleLocked arms the next single-shot poll. Caller holds o.mu.
func (o *Orchestrator) scheduleLocked(gen uint64, delay time.Duration) {
	o.stopTimerLocked()
	o.timer = time.AfterFunc(delay, func() {
		o.pollOnce(gen)
	})
}

// stopTimerLocked clears any pending timer. Caller holds o.mu.
func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) notifyProgress(job *model.BatchRenderJob) {
	if o.sink != nil && job != nil {
		o.sink.Progress(o.sessionID, job)
	}
}

func (o *Orchestrator) notifyPhase(phase model.RenderPhase, jobID string) {
	if o.sink != nil {
		o.sink.PhaseChange(o.sessionID, phase, jobID)
	}
}

func (o *Orchestrator) notifyError(message string) {
	if o.sink != nil {
		o.sink.ConfigError(o.sessionID, message)
	}
}

// cloneJob deep-copies a job snapshot so callers can never mutate the
// orchestrator's copy in place.
func cloneJob(job *model.BatchRenderJob) *model.BatchRenderJob {
	if job == nil {
		return nil
	}
	out := *job
	if job.Results != nil {
		out.Results = make([]model.BatchRenderResult, len(job.Results))
		copy(out.Results, job.Results)
	}
	if job.Errors != nil {
		out.Errors = make([]model.BatchRenderError, len(job.Errors))
		copy(out.Errors, job.Errors)
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
