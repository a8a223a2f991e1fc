package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// wire shapes, exactly as specified for the coordinator's serialized lists.

type wireImageRef struct {
	Type       string  `json:"type"`
	UploadUUID *string `json:"upload_uuid,omitempty"`
	Filename   *string `json:"filename,omitempty"`
	URI        *string `json:"uri,omitempty"`
	Name       *string `json:"name,omitempty"`
	CreateTime *string `json:"create_time,omitempty"`
	Path       *string `json:"path,omitempty"`
}

// MarshalJSON renders the tagged union as one of the three documented
// shapes, selected by Type.
func (r ImageRef) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case ImageRefPending:
		if r.Pending == nil {
			return nil, fmt.Errorf("model: pending image ref missing payload")
		}
		return json.Marshal(wireImageRef{
			Type:       string(ImageRefPending),
			UploadUUID: &r.Pending.UploadID,
			Filename:   &r.Pending.Filename,
		})
	case ImageRefRemote:
		if r.Remote == nil {
			return nil, fmt.Errorf("model: remote image ref missing payload")
		}
		w := wireImageRef{
			Type: string(ImageRefRemote),
			URI:  &r.Remote.URI,
			Name: &r.Remote.Name,
		}
		if r.Remote.CreateTime != nil {
			ct := r.Remote.CreateTime.UTC().Format(time.RFC3339)
			w.CreateTime = &ct
		}
		return json.Marshal(w)
	case ImageRefLocal:
		if r.Local == nil {
			return nil, fmt.Errorf("model: local image ref missing payload")
		}
		return json.Marshal(wireImageRef{Type: string(ImageRefLocal), Path: &r.Local.Path})
	default:
		return nil, fmt.Errorf("model: unknown image ref type %q", r.Type)
	}
}

// UnmarshalJSON parses one of the three documented shapes into the tagged
// union, rejecting anything else.
func (r *ImageRef) UnmarshalJSON(data []byte) error {
	var w wireImageRef
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch ImageRefType(w.Type) {
	case ImageRefPending:
		if w.UploadUUID == nil || w.Filename == nil {
			return fmt.Errorf("model: pending image ref missing upload_uuid/filename")
		}
		*r = NewPendingImageRef(*w.UploadUUID, *w.Filename)
	case ImageRefRemote:
		if w.URI == nil || w.Name == nil {
			return fmt.Errorf("model: remote image ref missing uri/name")
		}
		var ct *time.Time
		if w.CreateTime != nil && *w.CreateTime != "" {
			t, err := time.Parse(time.RFC3339, *w.CreateTime)
			if err != nil {
				return fmt.Errorf("model: invalid create_time: %w", err)
			}
			ct = &t
		}
		*r = NewRemoteImageRef(*w.URI, *w.Name, ct)
	case ImageRefLocal:
		if w.Path == nil {
			return fmt.Errorf("model: local image ref missing path")
		}
		*r = NewLocalImageRef(*w.Path)
	default:
		return fmt.Errorf("model: unknown image ref type %q", w.Type)
	}
	return nil
}

type wireAudioSegments struct {
	Count int `json:"count"`
}

type wireStagedMessage struct {
	Timestamp     string             `json:"timestamp"`
	ImageURIs     []ImageRef         `json:"image_uris"`
	Sources       []string           `json:"sources"`
	AudioSegments *wireAudioSegments `json:"audio_segments"`
	Message       *string            `json:"message"`
}

// SerializeStagedMessage renders m in the exact JSON shape the coordinator
// stores in messages(user_id).
func SerializeStagedMessage(m StagedMessage) ([]byte, error) {
	w := wireStagedMessage{
		Timestamp: m.Timestamp,
		ImageURIs: m.ImageRefs,
		Sources:   m.Sources,
		Message:   m.Text,
	}
	if m.AudioSegments != nil {
		w.AudioSegments = &wireAudioSegments{Count: m.AudioSegments.Count}
	}
	return json.Marshal(w)
}

// DeserializeStagedMessage parses the exact JSON shape back into a
// StagedMessage. DeleteAfterUpload is not part of the wire format (it is a
// per-call producer hint, not persisted state) and is always false after a
// round trip.
func DeserializeStagedMessage(data []byte) (StagedMessage, error) {
	var w wireStagedMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return StagedMessage{}, fmt.Errorf("model: deserialize staged message: %w", err)
	}
	m := StagedMessage{
		Timestamp: w.Timestamp,
		Text:      w.Message,
		ImageRefs: w.ImageURIs,
		Sources:   w.Sources,
	}
	if w.AudioSegments != nil {
		m.AudioSegments = &AudioSegments{Count: w.AudioSegments.Count}
	}
	return m, nil
}

type wireTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SerializeConversationPair renders p as the two-element `[user, assistant]`
// array the coordinator stores in conversations(user_id).
func SerializeConversationPair(p ConversationPair) ([]byte, error) {
	return json.Marshal([2]wireTurn{
		{Role: "user", Content: p.UserTurn},
		{Role: "assistant", Content: p.AssistantTurn},
	})
}

// DeserializeConversationPair parses the two-element turn array back into a
// ConversationPair.
func DeserializeConversationPair(data []byte) (ConversationPair, error) {
	var turns [2]wireTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return ConversationPair{}, fmt.Errorf("model: deserialize conversation pair: %w", err)
	}
	return ConversationPair{UserTurn: turns[0].Content, AssistantTurn: turns[1].Content}, nil
}

type wireUploadResult struct {
	Type       string  `json:"type"`
	URI        *string `json:"uri,omitempty"`
	Name       *string `json:"name,omitempty"`
	CreateTime *string `json:"create_time,omitempty"`
	Value      *string `json:"value,omitempty"`
}

type wireUploadStatus struct {
	Status    string            `json:"status"`
	Filename  string            `json:"filename"`
	Timestamp int64             `json:"timestamp"`
	Result    *wireUploadResult `json:"result"`
}

// SerializeUploadStatus renders s in the exact JSON shape stored at
// upload_status(upload_id).
func SerializeUploadStatus(s UploadStatus) ([]byte, error) {
	w := wireUploadStatus{
		Status:    string(s.Status),
		Filename:  s.Filename,
		Timestamp: s.Timestamp,
	}
	if s.Result != nil {
		wr := wireUploadResult{Type: string(s.Result.Type)}
		switch s.Result.Type {
		case UploadResultGoogleCloud:
			wr.URI = &s.Result.URI
			wr.Name = &s.Result.Name
			if s.Result.CreateTime != nil {
				ct := s.Result.CreateTime.UTC().Format(time.RFC3339)
				wr.CreateTime = &ct
			}
		case UploadResultOther:
			wr.Value = &s.Result.Value
		}
		w.Result = &wr
	}
	return json.Marshal(w)
}

// DeserializeUploadStatus parses the exact JSON shape back into an
// UploadStatus.
func DeserializeUploadStatus(data []byte) (UploadStatus, error) {
	var w wireUploadStatus
	if err := json.Unmarshal(data, &w); err != nil {
		return UploadStatus{}, fmt.Errorf("model: deserialize upload status: %w", err)
	}
	s := UploadStatus{
		Status:    UploadState(w.Status),
		Filename:  w.Filename,
		Timestamp: w.Timestamp,
	}
	if w.Result != nil {
		r := &UploadResult{Type: UploadResultType(w.Result.Type)}
		if w.Result.URI != nil {
			r.URI = *w.Result.URI
		}
		if w.Result.Name != nil {
			r.Name = *w.Result.Name
		}
		if w.Result.Value != nil {
			r.Value = *w.Result.Value
		}
		if w.Result.CreateTime != nil && *w.Result.CreateTime != "" {
			t, err := time.Parse(time.RFC3339, *w.Result.CreateTime)
			if err != nil {
				return UploadStatus{}, fmt.Errorf("model: invalid result create_time: %w", err)
			}
			r.CreateTime = &t
		}
		s.Result = r
	}
	return s, nil
}
