package tma

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// AbsorptionPool runs a fixed number of workers that repeatedly poll the
// set of recently active users and attempt Absorb for each. Since Absorb
// itself is lock-guarded and a no-op when nothing is ready or another pod
// already holds the lock, multiple workers (and multiple pods) may safely
// poll the same user concurrently.
//
// This core has no user registry of its own — there is no queryable
// source of "which users have pending messages" other than the
// coordinator keys those users' own appends already touched.
// AbsorptionPool fills that gap with an in-process registry, refreshed by
// Touch on every append, so at least the calling pod's own recent traffic
// is absorbed without an external scheduler.
type AbsorptionPool struct {
	podID            string
	acc              *Accumulator
	workerCount      int
	basePollInterval time.Duration
	pollJitter       time.Duration
	userTTL          time.Duration

	mu      sync.RWMutex
	touched map[string]time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAbsorptionPool constructs a pool that has not yet been started.
func NewAbsorptionPool(podID string, acc *Accumulator, workerCount int, pollInterval, pollJitter time.Duration) *AbsorptionPool {
	return &AbsorptionPool{
		podID:            podID,
		acc:              acc,
		workerCount:      workerCount,
		basePollInterval: pollInterval,
		pollJitter:       pollJitter,
		userTTL:          24 * time.Hour,
		touched:          make(map[string]time.Time),
		stopCh:           make(chan struct{}),
	}
}

// Touch marks userID as recently active, so the poll workers will attempt
// to absorb it. Called on every Append/AppendConversation.
func (p *AbsorptionPool) Touch(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touched[userID] = time.Now()
}

// Start launches the worker goroutines.
func (p *AbsorptionPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	slog.Info("Absorption pool started", "pod_id", p.podID, "worker_count", p.workerCount)
}

// Stop signals all workers to exit and waits for them to finish.
func (p *AbsorptionPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("Absorption pool stopped", "pod_id", p.podID)
}

func (p *AbsorptionPool) run(ctx context.Context, workerIdx int) {
	defer p.wg.Done()
	log := slog.With("pod_id", p.podID, "worker", workerIdx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		for _, userID := range p.activeUserIDs() {
			if _, err := p.acc.Absorb(ctx, userID); err != nil {
				log.Error("absorb attempt failed", "user_id", userID, "error", err)
			}
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
		}

		p.sleep(p.nextPollInterval())
	}
}

func (p *AbsorptionPool) sleep(d time.Duration) {
	select {
	case <-p.stopCh:
	case <-time.After(d):
	}
}

// nextPollInterval returns the base interval jittered by up to pollJitter
// in either direction, the same [base-jitter, base+jitter] shape as the
// teacher's worker.pollInterval().
func (p *AbsorptionPool) nextPollInterval() time.Duration {
	if p.pollJitter <= 0 {
		return p.basePollInterval
	}
	offset := time.Duration(rand.Int64N(int64(2 * p.pollJitter)))
	return p.basePollInterval - p.pollJitter + offset
}

func (p *AbsorptionPool) activeUserIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	out := make([]string, 0, len(p.touched))
	for userID, last := range p.touched {
		if now.Sub(last) > p.userTTL {
			delete(p.touched, userID)
			continue
		}
		out = append(out, userID)
	}
	return out
}
