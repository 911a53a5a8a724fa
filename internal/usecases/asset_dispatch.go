package usecases

import (
	"context"

	"go.uber.org/zap"

	"civitas.backend/internal/domain/entities"
	"civitas.backend/internal/domain/repositories"
	"civitas.backend/pkg/logger"
)

// AssetQueue is the queue the asset-generation job is dispatched onto.
// Satisfied by pkg/redis.Queue.
type AssetQueue interface {
	Enqueue(ctx context.Context, payload interface{}) error
}

// AssetJob is the queue payload for one asset-generation run.
type AssetJob struct {
	CitizenID string `json:"citizenId"`
	Attempt   int    `json:"attempt"`
}

// AssetDispatcher is the single point where the expensive, non-idempotent
// asset-generation work is triggered. The Advance call to ASSET_JOB_ENQUEUED
// is the exactly-once gate: however many orchestrator runs and webhook
// deliveries converge on PAYMENT_SUCCEEDED, only the first claim wins and
// every later one observes the no-op.
type AssetDispatcher struct {
	citizenRepo repositories.CitizenRepository
	queue       AssetQueue
}

// NewAssetDispatcher creates a new asset dispatcher
func NewAssetDispatcher(citizenRepo repositories.CitizenRepository, queue AssetQueue) *AssetDispatcher {
	return &AssetDispatcher{citizenRepo: citizenRepo, queue: queue}
}

// Claim attempts to win the dispatch gate. (false, nil) means another caller
// already claimed it and the work must not be repeated.
func (d *AssetDispatcher) Claim(ctx context.Context, citizenID string) (bool, error) {
	return d.citizenRepo.Advance(ctx, citizenID, entities.StateAssetJobEnqueued, nil)
}

// Dispatch claims the gate and, on a win, enqueues the generation job. Used
// by the asynchronous path; the orchestrator claims and finalizes inline
// instead so it can return the document synchronously.
func (d *AssetDispatcher) Dispatch(ctx context.Context, citizenID string) (bool, error) {
	won, err := d.Claim(ctx, citizenID)
	if err != nil || !won {
		return false, err
	}
	if err := d.queue.Enqueue(ctx, AssetJob{CitizenID: citizenID, Attempt: 1}); err != nil {
		// The gate is claimed but the job is not queued; the record stays at
		// ASSET_JOB_ENQUEUED for operational follow-up.
		logger.Error(ctx, "asset job enqueue failed after claiming gate",
			zap.String("citizen_id", citizenID), zap.Error(err))
		return true, err
	}
	logger.Info(ctx, "asset generation job enqueued", zap.String("citizen_id", citizenID))
	return true, nil
}
