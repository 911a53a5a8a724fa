package jobs

import (
	"context"
	"log"
	"time"

	"civitas.backend/internal/usecases"
	"civitas.backend/pkg/metrics"
	"civitas.backend/pkg/redis"
)

// AssetWorker consumes queued asset-generation jobs. The finalizer it runs is
// idempotent, so a job redelivered after a crash or retried after a transient
// provider failure converges on the same completed profile.
type AssetWorker struct {
	queue       *redis.Queue
	finalizer   *usecases.ProfileFinalizer
	maxAttempts int
	pollTimeout time.Duration
	stop        chan struct{}
}

func NewAssetWorker(queue *redis.Queue, finalizer *usecases.ProfileFinalizer, maxAttempts int, pollTimeout time.Duration) *AssetWorker {
	return &AssetWorker{
		queue:       queue,
		finalizer:   finalizer,
		maxAttempts: maxAttempts,
		pollTimeout: pollTimeout,
		stop:        make(chan struct{}),
	}
}

func (w *AssetWorker) Start(ctx context.Context) {
	log.Println("🎨 Starting asset generation worker...")

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Asset generation worker stopped (context cancelled)")
			return
		case <-w.stop:
			log.Println("⏹️ Asset generation worker stopped")
			return
		default:
			w.poll(ctx)
		}
	}
}

func (w *AssetWorker) Stop() {
	close(w.stop)
}

func (w *AssetWorker) poll(ctx context.Context) {
	var job usecases.AssetJob
	ok, err := w.queue.Dequeue(ctx, w.pollTimeout, &job)
	if err != nil {
		log.Printf("❌ Error polling asset job queue: %v", err)
		// Avoid a tight error loop when redis is down.
		select {
		case <-ctx.Done():
		case <-w.stop:
		case <-time.After(w.pollTimeout):
		}
		return
	}
	if !ok {
		return
	}

	w.process(ctx, job)
}

func (w *AssetWorker) process(ctx context.Context, job usecases.AssetJob) {
	log.Printf("🔄 Processing asset job for citizen %s (attempt %d)...", job.CitizenID, job.Attempt)

	if err := w.finalizer.Finalize(ctx, job.CitizenID, nil); err != nil {
		if job.Attempt >= w.maxAttempts {
			metrics.AssetJobsDropped.Inc()
			log.Printf("❌ Dropping asset job for citizen %s after %d attempts: %v", job.CitizenID, job.Attempt, err)
			return
		}
		metrics.AssetJobRetries.Inc()
		log.Printf("⚠️ Asset job for citizen %s failed, requeueing (attempt %d): %v", job.CitizenID, job.Attempt, err)
		if qErr := w.queue.Enqueue(ctx, usecases.AssetJob{CitizenID: job.CitizenID, Attempt: job.Attempt + 1}); qErr != nil {
			log.Printf("❌ Error requeueing asset job for citizen %s: %v", job.CitizenID, qErr)
		}
		return
	}

	log.Printf("✅ Asset job completed for citizen %s", job.CitizenID)
}
