package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mirixhq/mirixcore/pkg/config"
)

// Dispatcher routes one assembled batch to the agent layer. Direct-mode
// fan-out is bounded by cfg.Concurrency using a buffered semaphore channel
// and a plain WaitGroup, since every direct-mode call targets a fixed,
// known set of six agents rather than a dynamically sized one.
type Dispatcher struct {
	client AgentClient
	cfg    *config.DispatchConfig
}

// NewDispatcher constructs a Dispatcher over an AgentClient.
func NewDispatcher(client AgentClient, cfg *config.DispatchConfig) *Dispatcher {
	return &Dispatcher{client: client, cfg: cfg}
}

// Dispatch sends prompt to the agent layer in the given mode and returns
// every agent's result. One agent's failure never cancels the others; all
// results are returned, sorted into the fixed DirectModeAgents order for
// ModeDirect and a single element for ModeCoordinator.
func (d *Dispatcher) Dispatch(ctx context.Context, mode Mode, prompt Prompt, meta BatchMetadata) []Result {
	meta.Mode = mode
	if mode == ModeCoordinator {
		body, err := d.client.Handle(ctx, AgentMeta, prompt, meta)
		if err != nil {
			slog.Error("meta-memory agent call failed", "user_id", meta.UserID, "error", err)
		}
		return []Result{{Kind: AgentMeta, Body: body, Err: err}}
	}
	return d.dispatchDirect(ctx, prompt, meta)
}

func (d *Dispatcher) dispatchDirect(ctx context.Context, prompt Prompt, meta BatchMetadata) []Result {
	agents := DirectModeAgents
	results := make([]Result, len(agents))

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, kind := range agents {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, kind AgentKind) {
			defer wg.Done()
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, d.cfg.AgentTimeout)
			defer cancel()

			body, err := d.client.Handle(callCtx, kind, prompt, meta)
			if err != nil {
				slog.Error("memory agent call failed", "user_id", meta.UserID, "agent", kind, "error", err)
			}
			results[i] = Result{Kind: kind, Body: body, Err: err}
		}(i, kind)
	}
	wg.Wait()
	return results
}

// AnyFailed reports whether at least one result carries an error; the
// accumulator uses this to set the any-agent-failed flag on the
// processed-batch audit row.
func AnyFailed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// AllFailed reports whether every result carries an error, the condition
// under which a configured re-enqueue-on-dispatch-failure policy triggers.
func AllFailed(results []Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}
