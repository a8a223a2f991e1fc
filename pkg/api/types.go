package api

import "time"

// imageRefDTO is the wire shape for one image reference in an append
// request. Exactly one of UploadID, URI, or Path should be set, matching
// the Type it names.
type imageRefDTO struct {
	Type     string `json:"type" binding:"required,oneof=pending google_cloud_file local_file"`
	UploadID string `json:"upload_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	URI      string `json:"uri,omitempty"`
	Name     string `json:"name,omitempty"`
	Path     string `json:"path,omitempty"`
}

// appendMessageRequest is the body of POST /v1/users/:id/messages.
type appendMessageRequest struct {
	Text              *string       `json:"text,omitempty"`
	Images            []imageRefDTO `json:"images,omitempty"`
	Sources           []string      `json:"sources,omitempty"`
	AudioSegmentCount *int          `json:"audio_segment_count,omitempty"`
	DeleteAfterUpload bool          `json:"delete_after_upload,omitempty"`
	// CleanupOnResolve maps an image's upload_id to the local path that
	// should be deleted once that upload resolves; only meaningful for
	// images with type "pending" and DeleteAfterUpload set.
	CleanupOnResolve map[string]string `json:"cleanup_on_resolve,omitempty"`
}

// appendConversationRequest is the body of POST /v1/users/:id/conversation.
type appendConversationRequest struct {
	UserTurn      string `json:"user_turn" binding:"required"`
	AssistantTurn string `json:"assistant_turn" binding:"required"`
}

// recentImageDTO is one element of the GET .../recent-images response.
type recentImageDTO struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	URI       string    `json:"uri,omitempty"`
	Path      string    `json:"path,omitempty"`
}
