package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrBackpressure is returned by Submit when the queue is full
var ErrBackpressure = errors.New("worker pool queue full (backpressure)")

// RatingSyncTask projects one player's committed global rating into the
// leaderboard. A nil Rating removes the player (unrated again).
type RatingSyncTask struct {
	Name   string
	Rating *int
}

// RatingWriter is the leaderboard projection the workers write to
type RatingWriter interface {
	UpdateRating(ctx context.Context, name string, rating int) error
	RemovePlayer(ctx context.Context, name string) error
}

// WorkerPool manages a pool of workers for asynchronous projection writes
type WorkerPool struct {
	jobs        chan RatingSyncTask
	workerCount int
	writer      RatingWriter
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, writer RatingWriter) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		jobs:        make(chan RatingSyncTask, queueSize),
		workerCount: workerCount,
		writer:      writer,
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	log.Info().Int("workers", wp.workerCount).Int("queue_size", cap(wp.jobs)).Msg("worker pool started")
}

// worker is the main worker loop that processes jobs
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			log.Debug().Int("worker", id).Msg("worker shutting down")
			return

		case task, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processTask(id, task)
		}
	}
}

// processTask handles a single projection task with panic recovery
func (wp *WorkerPool) processTask(workerID int, task RatingSyncTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("worker", workerID).Str("player", task.Name).Interface("panic", r).Msg("worker panic recovered")
			wp.metrics.incrementFailed()
		}
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(wp.ctx, 5*time.Second)
	defer cancel()

	var err error
	if task.Rating == nil {
		err = wp.writer.RemovePlayer(ctx, task.Name)
	} else {
		err = wp.writer.UpdateRating(ctx, task.Name, *task.Rating)
	}

	processingTime := time.Since(startTime)

	if err != nil {
		log.Error().Err(err).Int("worker", workerID).Str("player", task.Name).Dur("took", processingTime).
			Msg("failed to project rating")
		wp.metrics.incrementFailed()
		return
	}

	log.Debug().Int("worker", workerID).Str("player", task.Name).Dur("took", processingTime).Msg("rating projected")
	wp.metrics.recordSuccess(processingTime)
}

// Submit attempts to add a task to the queue with backpressure handling.
// A dropped task is repaired by the next full leaderboard sync.
func (wp *WorkerPool) Submit(task RatingSyncTask) error {
	select {
	case wp.jobs <- task:
		return nil

	default:
		log.Warn().Str("player", task.Name).Msg("backpressure: queue full, dropping projection write")
		wp.metrics.incrementBackpressure()
		return ErrBackpressure
	}
}

// Shutdown gracefully stops the worker pool, draining queued tasks
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	close(wp.jobs)

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logMetrics()
		return nil

	case <-time.After(timeout):
		wp.cancel()
		log.Warn().Dur("timeout", timeout).Msg("worker pool shutdown timed out")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() map[string]interface{} {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	return map[string]interface{}{
		"processed":           wp.metrics.processed,
		"failed":              wp.metrics.failed,
		"backpressure_events": wp.metrics.backpressure,
		"avg_processing_time": avgProcessing.String(),
		"queue_utilization":   fmt.Sprintf("%d/%d", len(wp.jobs), cap(wp.jobs)),
	}
}

func (wp *WorkerPool) logMetrics() {
	m := wp.GetMetrics()
	log.Info().
		Interface("processed", m["processed"]).
		Interface("failed", m["failed"]).
		Interface("backpressure_events", m["backpressure_events"]).
		Interface("avg_processing_time", m["avg_processing_time"]).
		Msg("worker pool stopped")
}

// Metrics helper methods
func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
