// Package model holds the wire-level types shared by the coordinator, the
// upload manager, and the accumulator: staged messages, image references,
// conversation pairs, and upload status records.
package model

import "time"

// ImageRefType tags the three variants an ImageRef can hold.
type ImageRefType string

const (
	ImageRefPending    ImageRefType = "pending"
	ImageRefRemote     ImageRefType = "google_cloud_file"
	ImageRefLocal      ImageRefType = "local_file"
)

// ImageRef is a tagged union of exactly three image-reference shapes. Exactly
// one of the Pending/Remote/Local fields is populated, selected by Type,
// rather than a single loosely-typed value that could be a path, a URI, or
// an upload handle depending on context.
type ImageRef struct {
	Type    ImageRefType
	Pending *PendingImageRef
	Remote  *RemoteImageRef
	Local   *LocalImageRef
}

// PendingImageRef references a file being uploaded out-of-band; UploadID is
// resolved against the upload manager / coordinator during absorption.
type PendingImageRef struct {
	UploadID string
	Filename string
}

// RemoteImageRef references a file already uploaded and reachable by URI.
type RemoteImageRef struct {
	URI        string
	Name       string
	CreateTime *time.Time
}

// LocalImageRef references a small file consumable by in-process encoding
// (e.g. inline base64) without an upload round trip.
type LocalImageRef struct {
	Path string
}

// NewPendingImageRef builds a Pending-variant ImageRef.
func NewPendingImageRef(uploadID, filename string) ImageRef {
	return ImageRef{Type: ImageRefPending, Pending: &PendingImageRef{UploadID: uploadID, Filename: filename}}
}

// NewRemoteImageRef builds a Remote-variant ImageRef.
func NewRemoteImageRef(uri, name string, createTime *time.Time) ImageRef {
	return ImageRef{Type: ImageRefRemote, Remote: &RemoteImageRef{URI: uri, Name: name, CreateTime: createTime}}
}

// NewLocalImageRef builds a Local-variant ImageRef.
func NewLocalImageRef(path string) ImageRef {
	return ImageRef{Type: ImageRefLocal, Local: &LocalImageRef{Path: path}}
}

// IsPending reports whether this reference still needs resolution before a
// message containing it can be absorbed.
func (r ImageRef) IsPending() bool {
	return r.Type == ImageRefPending
}

// AudioSegments carries only the count of audio segments attached to a
// message; raw audio bytes never cross the coordinator.
type AudioSegments struct {
	Count int
}

// StagedMessage is one normalized input record held in a user's message
// queue, awaiting absorption.
type StagedMessage struct {
	Timestamp         string
	Text              *string
	ImageRefs         []ImageRef
	Sources           []string
	AudioSegments     *AudioSegments
	DeleteAfterUpload bool
}

// EffectiveSources returns Sources if its length matches ImageRefs, otherwise
// falls back to one generic label applied to every image (spec open
// question: source/count mismatch is tolerated, not a hard validation
// error — see DESIGN.md).
func (m StagedMessage) EffectiveSources() []string {
	if len(m.Sources) == len(m.ImageRefs) {
		return m.Sources
	}
	out := make([]string, len(m.ImageRefs))
	for i := range out {
		out[i] = "unknown"
	}
	return out
}

// ConversationPair is one user/assistant turn accumulated alongside staged
// messages, spliced into the prompt at absorption time.
type ConversationPair struct {
	UserTurn      string
	AssistantTurn string
}

// UploadState is the lifecycle state of a submitted upload.
type UploadState string

const (
	UploadPending   UploadState = "pending"
	UploadCompleted UploadState = "completed"
	UploadFailed    UploadState = "failed"
	// UploadUnknown is never stored; it is the status callers observe when
	// the coordinator key is absent. Absence is treated as terminal failure,
	// never as "still running" — a placeholder is never assumed recoverable
	// from local memory alone once its coordinator record is gone.
	UploadUnknown UploadState = "unknown"
)

// UploadResultType tags the payload carried by a completed UploadStatus.
type UploadResultType string

const (
	UploadResultGoogleCloud UploadResultType = "google_cloud"
	UploadResultOther       UploadResultType = "other"
)

// UploadResult is the terminal payload of a completed upload.
type UploadResult struct {
	Type       UploadResultType
	URI        string
	Name       string
	CreateTime *time.Time
	Value      string
}

// UploadStatus is the coordinator-held record for one upload_id.
type UploadStatus struct {
	Status    UploadState
	Filename  string
	Timestamp int64
	Result    *UploadResult
}
