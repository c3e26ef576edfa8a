package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clanelo/internal/models"
	"clanelo/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrJobRunning is returned when a recalculation is already in flight
	ErrJobRunning = errors.New("a recalculation is already running")

	// ErrJobNotFound is returned for an unknown job id
	ErrJobNotFound = errors.New("recalculation job not found")
)

// JobStatus is the lifecycle state of a recalculation job
type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Recalculator runs a recalculation with a progress callback
type Recalculator interface {
	Recalculate(ctx context.Context, scope service.Scope, progress service.ProgressFunc) (service.RecalcResult, error)
}

// Broadcaster fans progress events out to live subscribers
type Broadcaster interface {
	Publish(event models.ProgressEvent)
}

// LeaderboardSyncer rebuilds the leaderboard projection
type LeaderboardSyncer interface {
	SyncRedisFromDatabase(ctx context.Context) error
}

// Job is a snapshot of one recalculation run
type Job struct {
	ID           string                `json:"id"`
	TournamentID *uint                 `json:"tournament_id,omitempty"`
	Status       JobStatus             `json:"status"`
	Total        int                   `json:"total"`
	Processed    int                   `json:"processed"`
	Result       *service.RecalcResult `json:"result,omitempty"`
	Error        string                `json:"error,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   *time.Time            `json:"finished_at,omitempty"`

	cancel context.CancelFunc
}

// RecalcManager runs recalculations in the background, one at a time, and
// exposes their progress for polling and streaming
type RecalcManager struct {
	engine Recalculator
	hub    Broadcaster
	syncer LeaderboardSyncer

	mu      sync.RWMutex
	jobs    map[string]*Job
	running string
	wg      sync.WaitGroup
}

// NewRecalcManager creates a new recalculation manager. hub and syncer may be nil.
func NewRecalcManager(engine Recalculator, hub Broadcaster, syncer LeaderboardSyncer) *RecalcManager {
	return &RecalcManager{
		engine: engine,
		hub:    hub,
		syncer: syncer,
		jobs:   make(map[string]*Job),
	}
}

// Start launches a recalculation of scope and returns its job snapshot
func (m *RecalcManager) Start(scope service.Scope) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running != "" {
		return Job{}, fmt.Errorf("%w: %s", ErrJobRunning, m.running)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:           uuid.NewString(),
		TournamentID: scope.TournamentID,
		Status:       StatusRunning,
		StartedAt:    time.Now().UTC(),
		cancel:       cancel,
	}
	m.jobs[job.ID] = job
	m.running = job.ID

	m.wg.Add(1)
	go m.run(ctx, job.ID, scope)

	log.Info().Str("job_id", job.ID).Interface("tournament_id", scope.TournamentID).Msg("recalculation started")
	return *job, nil
}

func (m *RecalcManager) run(ctx context.Context, id string, scope service.Scope) {
	defer m.wg.Done()

	result, err := m.engine.Recalculate(ctx, scope, func(ev models.ProgressEvent) {
		ev.Payload.JobID = id
		m.observe(id, ev)
		if m.hub != nil {
			m.hub.Publish(ev)
		}
	})

	m.mu.Lock()
	job := m.jobs[id]
	now := time.Now().UTC()
	job.FinishedAt = &now
	switch {
	case err == nil:
		job.Status = StatusCompleted
		job.Result = &result
	case errors.Is(err, context.Canceled):
		job.Status = StatusCancelled
		job.Error = "cancelled; no changes were committed"
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
	}
	job.cancel()
	m.running = ""
	status := job.Status
	m.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("job_id", id).Str("status", string(status)).Msg("recalculation did not commit")
		return
	}

	log.Info().Str("job_id", id).
		Int("players_updated", result.PlayersUpdated).
		Int("matches_processed", result.MatchesProcessed).
		Msg("recalculation completed")

	if m.syncer != nil {
		syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.syncer.SyncRedisFromDatabase(syncCtx); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("leaderboard sync after recalculation failed")
		}
	}
}

// observe folds an event into the job snapshot
func (m *RecalcManager) observe(id string, ev models.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return
	}
	switch ev.Type {
	case models.EventStart, models.EventProgress, models.EventComplete:
		job.Total = ev.Payload.Total
		job.Processed = ev.Payload.Processed
	}
}

// Get returns a snapshot of a job
func (m *RecalcManager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// Cancel stops a running job; its transaction rolls back
func (m *RecalcManager) Cancel(id string) (Job, error) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	job.cancel()
	log.Info().Str("job_id", id).Msg("recalculation cancel requested")
	return m.Get(id)
}

// Wait blocks until every started job has finished
func (m *RecalcManager) Wait() {
	m.wg.Wait()
}

// Stop cancels the running job, if any, and waits for it to roll back
func (m *RecalcManager) Stop() {
	m.mu.RLock()
	if job, ok := m.jobs[m.running]; ok {
		job.cancel()
	}
	m.mu.RUnlock()
	m.wg.Wait()
}
