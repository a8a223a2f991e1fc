package tma

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/mirixhq/mirixcore/pkg/coordinator"
)

// EnsureUserInitialized runs initFunc exactly once per user across the
// whole fleet: the first caller to acquire the init lock runs it and marks
// init-done; every other concurrent caller spin-waits for init-done rather
// than racing to run initFunc itself. Already-initialized users return
// immediately without touching the lock.
func (a *Accumulator) EnsureUserInitialized(ctx context.Context, userID string, initFunc func(ctx context.Context, userID string) error) error {
	doneKey := coordinator.InitDoneKey(userID)
	lockKey := coordinator.InitLockKey(userID)

	if _, ok, err := a.Coord.Get(ctx, doneKey); err != nil {
		return err
	} else if ok {
		return nil
	}

	for {
		acquired, err := a.Coord.SetNX(ctx, lockKey, []byte("1"), a.Cfg.InitLockTTL)
		if err != nil {
			return err
		}
		if acquired {
			return a.runInit(ctx, userID, doneKey, lockKey, initFunc)
		}

		if done, err := a.spinWaitForInit(ctx, userID); err != nil {
			return err
		} else if done {
			return nil
		}
		// Lock holder finished (or died) without marking done; loop back and
		// try to acquire it ourselves.
	}
}

func (a *Accumulator) runInit(ctx context.Context, userID, doneKey, lockKey string, initFunc func(ctx context.Context, userID string) error) error {
	defer func() {
		_ = a.Coord.Del(ctx, lockKey)
	}()
	if err := initFunc(ctx, userID); err != nil {
		return fmt.Errorf("tma: initializing user %s: %w", userID, err)
	}
	if _, err := a.Coord.SetNX(ctx, doneKey, []byte("1"), a.Cfg.InitDoneTTL); err != nil {
		return err
	}
	return nil
}

// spinWaitForInit polls for init-done while the lock is held by another
// caller, returning (true, nil) once it appears, or (false, nil) once the
// lock disappears without init-done ever being set (the holder died or
// never finished), so the caller can retry acquisition itself.
func (a *Accumulator) spinWaitForInit(ctx context.Context, userID string) (bool, error) {
	doneKey := coordinator.InitDoneKey(userID)
	lockKey := coordinator.InitLockKey(userID)
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Duration(50+rand.Intn(100)) * time.Millisecond):
		}

		if _, ok, err := a.Coord.Get(ctx, doneKey); err != nil {
			return false, err
		} else if ok {
			return true, nil
		}
		if _, ok, err := a.Coord.Get(ctx, lockKey); err != nil {
			return false, err
		} else if !ok {
			return false, nil
		}
	}
}
