package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/mirixhq/mirixcore/pkg/config"
	"github.com/mirixhq/mirixcore/pkg/coordinator"
	"github.com/mirixhq/mirixcore/pkg/dispatch"
	"github.com/mirixhq/mirixcore/pkg/model"
	"github.com/mirixhq/mirixcore/pkg/tma"
	"github.com/mirixhq/mirixcore/pkg/upload"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgentClient struct{}

func (f *fakeAgentClient) Handle(ctx context.Context, kind dispatch.AgentKind, prompt dispatch.Prompt, meta dispatch.BatchMetadata) (string, error) {
	return "ok", nil
}

type fakeTouchPool struct {
	touched []string
}

func (f *fakeTouchPool) Touch(userID string) {
	f.touched = append(f.touched, userID)
}

func newTestHandler(t *testing.T, threshold int) (*Handler, *fakeTouchPool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	coord := coordinator.NewRedisClient(rdb)

	uploader := upload.NewManager(coord, upload.UploaderFunc(func(ctx context.Context, localPath string) (model.UploadResult, error) {
		return model.UploadResult{Type: model.UploadResultGoogleCloud, URI: "gs://b/" + localPath, Name: localPath}, nil
	}), config.DefaultUploadConfig(), "pod-test")
	uploader.Start()
	t.Cleanup(uploader.Stop)

	d := dispatch.NewDispatcher(&fakeAgentClient{}, config.DefaultDispatchConfig())

	cfg := config.DefaultTMAConfig()
	cfg.Threshold = threshold

	acc := tma.NewAccumulator(coord, uploader, d, nil, cfg)
	t.Cleanup(acc.Close)

	pool := &fakeTouchPool{}
	return NewHandler(acc, pool), pool
}

func TestHandler_AppendMessage(t *testing.T) {
	h, pool := newTestHandler(t, 5)
	router := gin.New()
	router.POST("/v1/users/:id/messages", h.AppendMessage)

	text := "hello"
	body, _ := json.Marshal(appendMessageRequest{Text: &text})
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"u1"}, pool.touched)
}

func TestHandler_AppendMessageRejectsUnknownImageType(t *testing.T) {
	h, _ := newTestHandler(t, 5)
	router := gin.New()
	router.POST("/v1/users/:id/messages", h.AppendMessage)

	body, _ := json.Marshal(appendMessageRequest{Images: []imageRefDTO{{Type: "bogus"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AppendConversationRequiresBothTurns(t *testing.T) {
	h, _ := newTestHandler(t, 5)
	router := gin.New()
	router.POST("/v1/users/:id/conversation", h.AppendConversation)

	body, _ := json.Marshal(appendConversationRequest{UserTurn: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/conversation", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AppendConversationSuccess(t *testing.T) {
	h, pool := newTestHandler(t, 5)
	router := gin.New()
	router.POST("/v1/users/:id/conversation", h.AppendConversation)

	body, _ := json.Marshal(appendConversationRequest{UserTurn: "hi", AssistantTurn: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/conversation", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"u1"}, pool.touched)
}

func TestHandler_RecentImagesEmpty(t *testing.T) {
	h, _ := newTestHandler(t, 5)
	router := gin.New()
	router.GET("/v1/users/:id/recent-images", h.RecentImages)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/u1/recent-images", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Images []recentImageDTO `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Images)
}

func TestToImageRefs(t *testing.T) {
	refs, sources, err := toImageRefs([]imageRefDTO{
		{Type: "pending", UploadID: "up1", Filename: "a.png"},
		{Type: "google_cloud_file", URI: "gs://b/o"},
		{Type: "local_file", Path: "/tmp/x.png"},
	}, []string{"camera"})
	require.NoError(t, err)
	assert.Len(t, refs, 3)
	assert.Equal(t, []string{"camera"}, sources)
}

func TestToImageRefs_MissingRequiredFieldErrors(t *testing.T) {
	_, _, err := toImageRefs([]imageRefDTO{{Type: "pending"}}, nil)
	assert.Error(t, err)

	_, _, err = toImageRefs([]imageRefDTO{{Type: "google_cloud_file"}}, nil)
	assert.Error(t, err)

	_, _, err = toImageRefs([]imageRefDTO{{Type: "local_file"}}, nil)
	assert.Error(t, err)
}
