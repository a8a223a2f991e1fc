package tma

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mirixhq/mirixcore/pkg/config"
	"github.com/mirixhq/mirixcore/pkg/coordinator"
	"github.com/mirixhq/mirixcore/pkg/dispatch"
	"github.com/mirixhq/mirixcore/pkg/model"
	"github.com/mirixhq/mirixcore/pkg/upload"
)

// AuditRecorder persists one row per absorbed batch. Nil is a valid,
// no-op Accumulator.Audit: recording is best-effort and never blocks
// absorption.
type AuditRecorder interface {
	Record(ctx context.Context, userID string, messageCount int, mode string, anyFailed bool) error
}

// CapacityRecorder persists one row each time a queue overflowed its
// capacity cap and had its oldest entries discarded. Nil is a valid, no-op
// Accumulator.Capacity: recording is best-effort and never blocks Append.
type CapacityRecorder interface {
	RecordCapacityTrim(ctx context.Context, userID, queue string, trimmedCount int) error
}

// Accumulator is the coordinator-backed core: any number of pods can run
// one, pointed at the same coordinator, and safely race to append and
// absorb for the same user.
type Accumulator struct {
	Coord      coordinator.Client
	Uploader   *upload.Manager
	Dispatcher *dispatch.Dispatcher
	Audit      AuditRecorder
	Capacity   CapacityRecorder
	Cfg        *config.TMAConfig

	cleanup *cleanupPool
}

// NewAccumulator wires the core from its already-constructed dependencies
// and starts its bounded background cleanup pool.
func NewAccumulator(coord coordinator.Client, uploader *upload.Manager, dispatcher *dispatch.Dispatcher, audit AuditRecorder, cfg *config.TMAConfig) *Accumulator {
	a := &Accumulator{
		Coord:      coord,
		Uploader:   uploader,
		Dispatcher: dispatcher,
		Audit:      audit,
		Cfg:        cfg,
		cleanup:    newCleanupPool(4),
	}
	a.cleanup.start()
	return a
}

// Close stops the background cleanup pool. It does not touch the
// coordinator or the upload manager, which callers own independently.
func (a *Accumulator) Close() {
	a.cleanup.stop()
}

// AppendOptions carries per-call hints that never cross the wire: which of
// this message's Pending images should have their local source file deleted
// once the upload resolves, regardless of which pod eventually absorbs the
// message. This mirrors the original's decoupling of "cleanup after upload"
// from "cleanup at absorption time" — the former runs on the appending pod
// as soon as the upload it is watching resolves, independent of absorb.
type AppendOptions struct {
	CleanupOnResolve map[string]string // upload_id -> local path
}

// Append adds msg to the tail of the user's message queue, refreshes its
// TTL, trims the queue to MaxMessages if it overflowed, and (if requested)
// schedules a best-effort background watch that deletes local source files
// once their uploads resolve.
func (a *Accumulator) Append(ctx context.Context, userID string, msg model.StagedMessage, opts AppendOptions) error {
	if userID == "" {
		return fmt.Errorf("tma: user id is required")
	}
	data, err := model.SerializeStagedMessage(msg)
	if err != nil {
		return fmt.Errorf("tma: serialize staged message: %w", err)
	}

	key := coordinator.MessagesKey(userID)
	if err := a.Coord.Append(ctx, key, data); err != nil {
		return err
	}
	if err := a.Coord.Expire(ctx, key, a.Cfg.MessageTTL); err != nil {
		return err
	}
	if err := a.trimToCapacity(ctx, userID, "messages", key, a.Cfg.MaxMessages); err != nil {
		return err
	}

	if len(opts.CleanupOnResolve) > 0 {
		a.scheduleDeleteOnResolve(userID, opts.CleanupOnResolve)
	}
	return nil
}

// AppendConversation adds one user/assistant turn to the user's pending
// conversation transcript, refreshes its TTL, and trims it to
// MaxConversations if it overflowed.
func (a *Accumulator) AppendConversation(ctx context.Context, userID string, pair model.ConversationPair) error {
	if userID == "" {
		return fmt.Errorf("tma: user id is required")
	}
	data, err := model.SerializeConversationPair(pair)
	if err != nil {
		return fmt.Errorf("tma: serialize conversation pair: %w", err)
	}

	key := coordinator.ConversationsKey(userID)
	if err := a.Coord.Append(ctx, key, data); err != nil {
		return err
	}
	if err := a.Coord.Expire(ctx, key, a.Cfg.ConversationTTL); err != nil {
		return err
	}
	return a.trimToCapacity(ctx, userID, "conversations", key, a.Cfg.MaxConversations)
}

func (a *Accumulator) trimToCapacity(ctx context.Context, userID, queue, key string, max int) error {
	n, err := a.Coord.LLen(ctx, key)
	if err != nil {
		return err
	}
	if n > int64(max) {
		trimmed := n - int64(max)
		if err := a.Coord.LTrim(ctx, key, trimmed, -1); err != nil {
			return err
		}
		if a.Capacity != nil {
			if err := a.Capacity.RecordCapacityTrim(ctx, userID, queue, int(trimmed)); err != nil {
				slog.Error("tma: recording capacity trim failed", "user_id", userID, "queue", queue, "error", err)
			}
		}
	}
	return nil
}

// ShouldAbsorb reports the longest ready prefix of the user's message queue:
// messages from the head that have no Pending image still unresolved. The
// scan stops at the first blocked message even if later messages are fully
// resolved, preserving temporal order in every absorbed batch. A nil result
// means fewer than Threshold messages are ready.
func (a *Accumulator) ShouldAbsorb(ctx context.Context, userID string) (*BatchPreview, error) {
	raw, err := a.Coord.Range(ctx, coordinator.MessagesKey(userID), 0, -1)
	if err != nil {
		return nil, err
	}
	ready, _, err := a.resolveReadyPrefix(ctx, raw)
	if err != nil {
		return nil, err
	}
	if len(ready) < a.Cfg.Threshold {
		return nil, nil
	}
	preview := make([]model.StagedMessage, len(ready))
	for i, rm := range ready {
		preview[i] = rm.original
	}
	return &BatchPreview{Ready: preview}, nil
}

// resolveReadyPrefix walks raw messages in order, resolving Pending images
// against the upload manager, and returns the prefix ending at (not
// including) the first message with a still-unresolved Pending image.
// blockedAtIndex is len(raw) when the walk reached the end unblocked.
func (a *Accumulator) resolveReadyPrefix(ctx context.Context, raw [][]byte) ([]readyMessage, int, error) {
	out := make([]readyMessage, 0, len(raw))
	for i, r := range raw {
		msg, err := model.DeserializeStagedMessage(r)
		if err != nil {
			slog.Error("tma: dropping unparseable staged message", "error", err)
			continue
		}
		images, blocked, err := a.resolveImages(ctx, msg.ImageRefs, msg.EffectiveSources(), msg.Timestamp)
		if err != nil {
			return out, i, err
		}
		if blocked {
			return out, i, nil
		}
		out = append(out, readyMessage{original: msg, images: images})
	}
	return out, len(raw), nil
}

// resolveImages resolves every Pending ref to Remote (completed), drops it
// (failed or unknown), or reports blocked=true (still pending). sources is
// the per-ref source label, aligned positionally with refs. timestamp is
// the parent message's timestamp, stamped onto every resolved image so the
// grouped-by-source prompt rendering can precede each image with it.
func (a *Accumulator) resolveImages(ctx context.Context, refs []model.ImageRef, sources []string, timestamp string) (resolved []resolvedImage, blocked bool, err error) {
	resolved = make([]resolvedImage, 0, len(refs))
	for i, ref := range refs {
		if !ref.IsPending() {
			resolved = append(resolved, resolvedImage{ref: ref, source: sources[i], timestamp: timestamp})
			continue
		}
		status, err := a.Uploader.Status(ctx, upload.Placeholder{UploadID: ref.Pending.UploadID})
		if err != nil {
			return nil, false, err
		}
		switch status.Status {
		case model.UploadPending:
			return nil, true, nil
		case model.UploadCompleted:
			if status.Result != nil && status.Result.Type == model.UploadResultGoogleCloud {
				resolved = append(resolved, resolvedImage{
					ref:       model.NewRemoteImageRef(status.Result.URI, status.Result.Name, status.Result.CreateTime),
					source:    sources[i],
					timestamp: timestamp,
				})
			}
			// A completed-but-non-file result (UploadResultOther) carries no
			// image payload; the reference is dropped, matching a failed
			// upload's treatment.
		case model.UploadFailed, model.UploadUnknown:
			slog.Warn("tma: dropping image with unresolved upload", "upload_id", ref.Pending.UploadID, "status", status.Status)
		}
	}
	return resolved, false, nil
}

// Absorb attempts one absorption cycle for userID: it acquires the absorb
// lock (a no-op if another pod already holds it), recomputes the ready
// prefix under the lock, atomically pops exactly that many messages,
// assembles a prompt, dispatches it, and on success clears any pending
// conversation transcript and releases per-upload bookkeeping. It returns
// (nil, nil) when there was nothing to do (lock held elsewhere, or ready
// prefix below threshold), so callers can poll it on a timer without
// special-casing "no-op". It returns an error when a coordinator call
// before dispatch fails, or when every agent failed and the batch was
// re-enqueued; the lock is released in every case.
func (a *Accumulator) Absorb(ctx context.Context, userID string) (*AbsorbResult, error) {
	lockKey := coordinator.AbsorbLockKey(userID)
	acquired, err := a.Coord.SetNX(ctx, lockKey, []byte("1"), a.Cfg.AbsorbLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, nil
	}
	defer func() {
		if err := a.Coord.Del(ctx, lockKey); err != nil {
			slog.Error("tma: releasing absorb lock", "user_id", userID, "error", err)
		}
	}()

	msgKey := coordinator.MessagesKey(userID)
	raw, err := a.Coord.Range(ctx, msgKey, 0, -1)
	if err != nil {
		return nil, err
	}
	ready, _, err := a.resolveReadyPrefix(ctx, raw)
	if err != nil {
		return nil, err
	}
	if len(ready) < a.Cfg.Threshold {
		return nil, nil
	}

	n := int64(len(ready))
	popped, err := a.Coord.PopHead(ctx, msgKey, n)
	if err != nil {
		return nil, err
	}
	if int64(len(popped)) != n {
		slog.Warn("tma: popped count diverged from ready prefix, proceeding with popped set", "user_id", userID, "expected", n, "got", len(popped))
	}

	convRaw, convErr := a.Coord.Range(ctx, coordinator.ConversationsKey(userID), 0, -1)
	if convErr != nil {
		slog.Warn("tma: reading pending conversation failed, absorbing without it", "user_id", userID, "error", convErr)
		convRaw = nil
	}
	conversation := make([]model.ConversationPair, 0, len(convRaw))
	for _, r := range convRaw {
		pair, err := model.DeserializeConversationPair(r)
		if err != nil {
			slog.Error("tma: dropping unparseable conversation pair", "error", err)
			continue
		}
		conversation = append(conversation, pair)
	}

	mode := dispatch.ModeCoordinator
	if a.Cfg.SkipMetaCoordinator {
		mode = dispatch.ModeDirect
	}
	prompt := assemblePrompt(ready, conversation, mode)
	meta := dispatch.BatchMetadata{UserID: userID, MessageCount: len(ready)}
	results := a.Dispatcher.Dispatch(ctx, mode, prompt, meta)

	allFailed := dispatch.AllFailed(results)
	if allFailed && a.Cfg.ReenqueueOnDispatchFailure {
		if err := a.Coord.RestoreHead(ctx, msgKey, popped); err != nil {
			slog.Error("tma: re-enqueue after total dispatch failure failed", "user_id", userID, "error", err)
		}
		return nil, fmt.Errorf("tma: dispatch failed for every agent, batch re-enqueued")
	}

	if !allFailed {
		if len(conversation) > 0 {
			if err := a.Coord.Del(ctx, coordinator.ConversationsKey(userID)); err != nil {
				slog.Error("tma: clearing absorbed conversation failed", "user_id", userID, "error", err)
			}
		}
		for _, rm := range ready {
			for _, ref := range rm.original.ImageRefs {
				if ref.IsPending() {
					a.Uploader.Release(ref.Pending.UploadID)
				}
			}
		}
	}

	modeName := "coordinator"
	if mode == dispatch.ModeDirect {
		modeName = "direct"
	}
	resultLines := make([]string, len(results))
	for i, r := range results {
		if r.Err != nil {
			resultLines[i] = fmt.Sprintf("%s:error: %v", r.Kind, r.Err)
		} else {
			resultLines[i] = fmt.Sprintf("%s:ok", r.Kind)
		}
	}

	if a.Audit != nil {
		if err := a.Audit.Record(ctx, userID, len(ready), modeName, dispatch.AnyFailed(results)); err != nil {
			slog.Error("tma: audit record failed", "user_id", userID, "error", err)
		}
	}

	return &AbsorbResult{UserID: userID, MessageCount: len(ready), Mode: modeName, Results: resultLines}, nil
}

func (a *Accumulator) scheduleDeleteOnResolve(userID string, cleanupOnResolve map[string]string) {
	for uploadID, localPath := range cleanupOnResolve {
		uploadID, localPath := uploadID, localPath
		submitted := a.cleanup.submit(func() {
			status, err := a.Uploader.Wait(context.Background(), upload.Placeholder{UploadID: uploadID}, a.Cfg.MessageTTL)
			if err != nil {
				slog.Error("tma: cleanup watch failed", "user_id", userID, "upload_id", uploadID, "error", err)
				return
			}
			if status.Status == model.UploadUnknown {
				return
			}
			deleteLocalFileWithRetry(localPath, 10)
		})
		if !submitted {
			slog.Warn("tma: cleanup pool saturated, skipping watch", "user_id", userID, "upload_id", uploadID)
		}
	}
}

// GetRecentImages returns images attached to messages appended within
// RecentImageWindow of now, most recent window only, for surfacing "what did
// the user just share" without waiting for absorption.
func (a *Accumulator) GetRecentImages(ctx context.Context, userID string, now time.Time) ([]RecentImage, error) {
	key := coordinator.MessagesKey(userID)
	n, err := a.Coord.LLen(ctx, key)
	if err != nil {
		return nil, err
	}
	start := n - int64(a.Cfg.Threshold)
	if start < 0 {
		start = 0
	}
	raw, err := a.Coord.Range(ctx, key, start, -1)
	if err != nil {
		return nil, err
	}

	var out []RecentImage
	for _, r := range raw {
		msg, err := model.DeserializeStagedMessage(r)
		if err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, msg.Timestamp)
		if err != nil {
			continue
		}
		if now.Sub(ts) > a.Cfg.RecentImageWindow || now.Sub(ts) < -a.Cfg.RecentImageWindow {
			continue
		}
		sources := msg.EffectiveSources()
		for i, ref := range msg.ImageRefs {
			resolved := ref
			if ref.IsPending() {
				status, err := a.Uploader.Status(ctx, upload.Placeholder{UploadID: ref.Pending.UploadID})
				if err != nil || status.Status != model.UploadCompleted || status.Result == nil {
					continue
				}
				resolved = model.NewRemoteImageRef(status.Result.URI, status.Result.Name, status.Result.CreateTime)
			}
			out = append(out, RecentImage{Timestamp: ts, Source: sources[i], Ref: resolved})
		}
	}
	return out, nil
}
