// Package tma implements the temporary message accumulator: the core that
// appends staged messages and conversation turns to a user's coordinator
// queues, decides when enough of them are ready to absorb, and assembles and
// dispatches a batch to the agent layer.
package tma

import (
	"time"

	"github.com/mirixhq/mirixcore/pkg/model"
)

// readyMessage is one popped-or-previewed message together with its images
// resolved as far as they can be: Pending refs that completed become Remote,
// Pending refs that failed or are unknown are dropped (never passed to the
// agent layer), and Remote/Local refs pass through untouched.
type readyMessage struct {
	original model.StagedMessage
	images   []resolvedImage
}

// resolvedImage pairs a fully-resolved image reference with the source
// label it was staged under and the timestamp of the message it came
// from, since resolution can drop references and break positional
// alignment with the original Sources slice, and the grouped-by-source
// prompt rendering needs the timestamp alongside each image.
type resolvedImage struct {
	ref       model.ImageRef
	source    string
	timestamp string
}

// BatchPreview is the result of a readiness check: the prefix of messages
// that are fully resolved and ready to absorb, in original order. It is
// informational only; Absorb recomputes its own prefix under the absorb
// lock rather than trusting a caller-supplied preview, since the queue can
// grow between the check and the attempt.
type BatchPreview struct {
	Ready []model.StagedMessage
}

// AbsorbResult summarizes one successful absorption cycle.
type AbsorbResult struct {
	UserID       string
	MessageCount int
	Mode         string
	Results      []string // one "agent:ok" / "agent:error: ..." line per dispatched agent
}

// RecentImage is one image surfaced by GetRecentImages, alongside the
// source label and timestamp of the message it came from.
type RecentImage struct {
	Timestamp time.Time
	Source    string
	Ref       model.ImageRef
}
