// Package audit persists one row per absorbed batch and one row per
// capacity-trim event, and periodically prunes both past their retention
// window.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mirixhq/mirixcore/ent"
	"github.com/mirixhq/mirixcore/ent/capacitytrimevent"
	"github.com/mirixhq/mirixcore/ent/processedbatch"
	"github.com/mirixhq/mirixcore/pkg/config"
)

// Service implements tma.AuditRecorder against the ent-backed audit
// ledger, and runs a background loop pruning rows older than the
// configured retention window.
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	client *ent.Client
	config *config.AuditConfig

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new audit service.
func NewService(client *ent.Client, cfg *config.AuditConfig) *Service {
	return &Service{
		client: client,
		config: cfg,
	}
}

// Record implements tma.AuditRecorder: it inserts one ProcessedBatch row.
// Recording is best-effort from the caller's perspective — Absorb logs and
// ignores any error Record returns rather than failing the absorption.
func (s *Service) Record(ctx context.Context, userID string, messageCount int, mode string, anyFailed bool) error {
	_, err := s.client.ProcessedBatch.Create().
		SetID(uuid.NewString()).
		SetUserID(userID).
		SetMessageCount(messageCount).
		SetMode(processedbatch.Mode(mode)).
		SetAnyAgentFailed(anyFailed).
		Save(ctx)
	return err
}

// RecordCapacityTrim inserts one CapacityTrimEvent row for a queue that
// overflowed its capacity cap and had its oldest entries discarded.
func (s *Service) RecordCapacityTrim(ctx context.Context, userID, queue string, trimmedCount int) error {
	_, err := s.client.CapacityTrimEvent.Create().
		SetID(uuid.NewString()).
		SetUserID(userID).
		SetQueue(capacitytrimevent.Queue(queue)).
		SetTrimmedCount(trimmedCount).
		Save(ctx)
	return err
}

// Start launches the background retention loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Audit retention service started",
		"retention_days", s.config.RetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the retention loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Audit retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneProcessedBatches(ctx)
	s.pruneCapacityTrimEvents(ctx)
}

func (s *Service) pruneProcessedBatches(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)
	count, err := s.client.ProcessedBatch.Delete().
		Where(processedbatch.AbsorbedAtLT(cutoff)).
		Exec(ctx)
	if err != nil {
		slog.Error("Audit retention: processed batch prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Audit retention: pruned processed batches", "count", count)
	}
}

func (s *Service) pruneCapacityTrimEvents(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)
	count, err := s.client.CapacityTrimEvent.Delete().
		Where(capacitytrimevent.OccurredAtLT(cutoff)).
		Exec(ctx)
	if err != nil {
		slog.Error("Audit retention: capacity trim event prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Audit retention: pruned capacity trim events", "count", count)
	}
}
