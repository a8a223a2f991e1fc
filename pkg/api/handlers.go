// Package api exposes the accumulator over a thin gin HTTP surface:
// appending messages and conversation turns, reading recently attached
// images, and a combined health check.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mirixhq/mirixcore/pkg/model"
	"github.com/mirixhq/mirixcore/pkg/tma"
)

// touchable marks a user as recently active so the absorption pool will
// poll it; satisfied by *tma.AbsorptionPool. Optional: nil is valid when
// absorption is driven some other way (e.g. tests calling Absorb directly).
type touchable interface {
	Touch(userID string)
}

// Handler wires the accumulator into gin route handlers.
type Handler struct {
	Acc  *tma.Accumulator
	Pool touchable
}

// NewHandler constructs a Handler over an already-built Accumulator and
// (optionally) the absorption pool that should be notified of new traffic.
func NewHandler(acc *tma.Accumulator, pool touchable) *Handler {
	return &Handler{Acc: acc, Pool: pool}
}

// AppendMessage handles POST /v1/users/:id/messages.
func (h *Handler) AppendMessage(c *gin.Context) {
	userID := c.Param("id")

	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refs, sources, err := toImageRefs(req.Images, req.Sources)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := model.StagedMessage{
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Text:              req.Text,
		ImageRefs:         refs,
		Sources:           sources,
		DeleteAfterUpload: req.DeleteAfterUpload,
	}
	if req.AudioSegmentCount != nil {
		msg.AudioSegments = &model.AudioSegments{Count: *req.AudioSegmentCount}
	}

	opts := tma.AppendOptions{}
	if req.DeleteAfterUpload {
		opts.CleanupOnResolve = req.CleanupOnResolve
	}
	if err := h.Acc.Append(c.Request.Context(), userID, msg, opts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.Pool != nil {
		h.Pool.Touch(userID)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "appended"})
}

// AppendConversation handles POST /v1/users/:id/conversation.
func (h *Handler) AppendConversation(c *gin.Context) {
	userID := c.Param("id")

	var req appendConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair := model.ConversationPair{UserTurn: req.UserTurn, AssistantTurn: req.AssistantTurn}
	if err := h.Acc.AppendConversation(c.Request.Context(), userID, pair); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.Pool != nil {
		h.Pool.Touch(userID)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "appended"})
}

// RecentImages handles GET /v1/users/:id/recent-images.
func (h *Handler) RecentImages(c *gin.Context) {
	userID := c.Param("id")

	images, err := h.Acc.GetRecentImages(c.Request.Context(), userID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]recentImageDTO, len(images))
	for i, img := range images {
		out[i] = recentImageDTO{Timestamp: img.Timestamp, Source: img.Source, Type: string(img.Ref.Type)}
		switch img.Ref.Type {
		case model.ImageRefRemote:
			out[i].URI = img.Ref.Remote.URI
		case model.ImageRefLocal:
			out[i].Path = img.Ref.Local.Path
		}
	}
	c.JSON(http.StatusOK, gin.H{"images": out})
}

func toImageRefs(dtos []imageRefDTO, sources []string) ([]model.ImageRef, []string, error) {
	refs := make([]model.ImageRef, len(dtos))
	for i, d := range dtos {
		switch model.ImageRefType(d.Type) {
		case model.ImageRefPending:
			if d.UploadID == "" {
				return nil, nil, fmt.Errorf("image %d: upload_id is required for type pending", i)
			}
			refs[i] = model.NewPendingImageRef(d.UploadID, d.Filename)
		case model.ImageRefRemote:
			if d.URI == "" {
				return nil, nil, fmt.Errorf("image %d: uri is required for type google_cloud_file", i)
			}
			refs[i] = model.NewRemoteImageRef(d.URI, d.Name, nil)
		case model.ImageRefLocal:
			if d.Path == "" {
				return nil, nil, fmt.Errorf("image %d: path is required for type local_file", i)
			}
			refs[i] = model.NewLocalImageRef(d.Path)
		default:
			return nil, nil, fmt.Errorf("image %d: unknown type %q", i, d.Type)
		}
	}
	return refs, sources, nil
}
