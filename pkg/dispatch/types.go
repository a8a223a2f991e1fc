// Package dispatch routes an assembled batch either to a single
// meta-memory agent (coordinator mode) or fans it out in parallel to the
// six specialized memory agents (direct mode), under a bounded worker pool.
package dispatch

import "context"

// AgentKind names one of the fixed memory agent types, or the single
// meta-memory agent used in coordinator mode.
type AgentKind string

const (
	AgentEpisodic       AgentKind = "episodic"
	AgentSemantic       AgentKind = "semantic"
	AgentProcedural     AgentKind = "procedural"
	AgentResource       AgentKind = "resource"
	AgentCore           AgentKind = "core"
	AgentKnowledgeVault AgentKind = "knowledge_vault"
	AgentMeta           AgentKind = "meta_memory"
)

// DirectModeAgents is the fixed fan-out set for direct mode, in the order
// the original dispatches them.
var DirectModeAgents = []AgentKind{
	AgentEpisodic, AgentProcedural, AgentKnowledgeVault, AgentSemantic, AgentCore, AgentResource,
}

// Mode selects coordinator-mode (single meta-agent call) or direct-mode
// (bounded fan-out to all six memory agents).
type Mode int

const (
	ModeCoordinator Mode = iota
	ModeDirect
)

// Attachment is one multimodal block in an assembled prompt: either a
// remote reference (URI) or inline encoded data.
type Attachment struct {
	Kind     string // "remote" | "inline"
	URI      string
	Data     []byte
	MimeType string
}

// Prompt is the structured multimodal payload the accumulator assembles and
// hands to the dispatcher; see pkg/tma's prompt assembly for how it is
// built.
type Prompt struct {
	Text        string
	Attachments []Attachment
}

// BatchMetadata describes the batch being dispatched, passed alongside the
// prompt so agents can log/attribute without parsing prompt text.
type BatchMetadata struct {
	UserID       string
	MessageCount int
	Mode         Mode
}

// Result is one agent's outcome.
type Result struct {
	Kind AgentKind
	Body string
	Err  error
}

// AgentClient is the Agent Layer contract consumed by the dispatcher. Each
// call targets one kind: the single meta-memory agent in coordinator mode,
// or one of the six specialized agents in direct mode. Agent failures are
// the caller's to log; an already-popped batch is not rolled back, except
// that the accumulator restores a batch every agent failed when
// ReenqueueOnDispatchFailure is set.
type AgentClient interface {
	Handle(ctx context.Context, kind AgentKind, prompt Prompt, meta BatchMetadata) (string, error)
}
