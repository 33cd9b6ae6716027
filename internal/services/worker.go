package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/swiss-cv-analyser/internal/repositories"
)

type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueJob(id uuid.UUID)
	// Cancel stops a running job. It reports whether the job was running.
	Cancel(id uuid.UUID) bool
}

type worker struct {
	repo         repositories.AnalysisRepository
	runner       AnalysisRunner
	jobQueue     chan uuid.UUID
	concurrency  int
	pollInterval time.Duration
	wg           sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
	cancel       context.CancelCauseFunc

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	running map[uuid.UUID]context.CancelCauseFunc
}

func NewWorker(
	repo repositories.AnalysisRepository,
	runner AnalysisRunner,
	concurrency int,
	pollInterval time.Duration,
) Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}

	return &worker{
		repo:         repo,
		runner:       runner,
		jobQueue:     make(chan uuid.UUID, 100),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		pending:      make(map[uuid.UUID]struct{}),
		running:      make(map[uuid.UUID]context.CancelCauseFunc),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancelCause(ctx)
	log.Info().Int("concurrency", w.concurrency).Msg("🚀 Starting worker")

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollQueuedJobs()
}

// Stop implements Worker.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		log.Info().Msg("🛑 Stopping worker...")
		close(w.stopChan)
		if w.cancel != nil {
			// Interrupted jobs go back to the queue instead of being cancelled
			w.cancel(ErrShutdown)
		}

		w.wg.Wait()
		log.Info().Msg("✅ Worker stopped")
	})
}

// EnqueueJob implements Worker. Jobs already queued or running are ignored.
func (w *worker) EnqueueJob(id uuid.UUID) {
	w.mu.Lock()
	if _, ok := w.pending[id]; ok {
		w.mu.Unlock()
		return
	}
	if _, ok := w.running[id]; ok {
		w.mu.Unlock()
		return
	}
	w.pending[id] = struct{}{}
	w.mu.Unlock()

	select {
	case w.jobQueue <- id:
		log.Debug().Str("analysis_id", id.String()).Msg("📥 Job enqueued")
	case <-w.stopChan:
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
		log.Warn().Str("analysis_id", id.String()).Msg("⚠️ Worker stopped, cannot enqueue job")
	}
}

// Cancel implements Worker.
func (w *worker) Cancel(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cancel, ok := w.running[id]
	if ok {
		cancel(context.Canceled)
	}
	return ok
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			log.Debug().Int("worker", workerID).Msg("👷 Worker stopped")
			return
		case id := <-w.jobQueue:
			select {
			case <-w.stopChan:
				return
			default:
			}
			w.run(ctx, workerID, id)
		}
	}
}

func (w *worker) run(ctx context.Context, workerID int, id uuid.UUID) {
	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	w.mu.Lock()
	delete(w.pending, id)
	w.running[id] = cancel
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.running, id)
		w.mu.Unlock()
	}()

	log.Info().Int("worker", workerID).Str("analysis_id", id.String()).Msg("👷 Processing analysis")
	if err := w.runner.RunAnalysis(jobCtx, id); err != nil {
		log.Error().Err(err).Int("worker", workerID).Str("analysis_id", id.String()).Msg("❌ Analysis job failed")
	}
}

// pollQueuedJobs picks up analyses left queued, e.g. after a restart.
func (w *worker) pollQueuedJobs() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			queued, err := w.repo.FindQueued(10)
			if err != nil {
				log.Warn().Err(err).Msg("⚠️ Failed to fetch queued analyses")
				continue
			}

			if len(queued) > 0 {
				log.Debug().Int("count", len(queued)).Msg("📋 Found queued analyses")
			}

			for _, analysis := range queued {
				w.EnqueueJob(analysis.ID)
			}
		}
	}
}
