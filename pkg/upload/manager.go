package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mirixhq/mirixcore/pkg/config"
	"github.com/mirixhq/mirixcore/pkg/coordinator"
	"github.com/mirixhq/mirixcore/pkg/model"
)

// job is one queued upload awaiting a worker.
type job struct {
	uploadID  string
	localPath string
}

// localFuture lets the submitting pod resolve a placeholder opportunistically
// without a coordinator round trip. It is never the sole source of truth:
// Status always prefers the coordinator record.
type localFuture struct {
	done   chan struct{}
	status model.UploadStatus
}

// Manager is the bounded-worker-pool upload manager: Start/Stop, a stop
// channel guarded by sync.Once, and a WaitGroup-tracked worker fleet
// draining an in-process job channel.
type Manager struct {
	coord    coordinator.Client
	uploader Uploader
	cfg      *config.UploadConfig
	podID    string

	jobs   chan job
	stopCh chan struct{}
	stopOnce sync.Once
	wg     sync.WaitGroup

	mu          sync.RWMutex
	futures     map[string]*localFuture
	submittedAt map[string]time.Time
	filenames   map[string]string
}

// NewManager constructs a Manager but does not start its workers; call
// Start before Submit.
func NewManager(coord coordinator.Client, uploader Uploader, cfg *config.UploadConfig, podID string) *Manager {
	return &Manager{
		coord:       coord,
		uploader:    uploader,
		cfg:         cfg,
		podID:       podID,
		jobs:        make(chan job, cfg.QueueDepth),
		stopCh:      make(chan struct{}),
		futures:     make(map[string]*localFuture),
		submittedAt: make(map[string]time.Time),
		filenames:   make(map[string]string),
	}
}

// Start launches the worker pool.
func (m *Manager) Start() {
	for i := 0; i < m.cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.runWorker()
	}
}

// Stop signals workers to exit and waits for in-flight uploads to finish.
// Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

// Submit enqueues localPath for background upload and returns immediately
// with an opaque Placeholder. producedAt is recorded for stuck-upload
// detection surfaced via Summary.
func (m *Manager) Submit(ctx context.Context, localPath string, producedAt time.Time) (Placeholder, error) {
	id := uuid.NewString()
	filename := filepath.Base(localPath)

	pending := model.UploadStatus{Status: model.UploadPending, Filename: filename, Timestamp: producedAt.Unix()}
	data, err := model.SerializeUploadStatus(pending)
	if err != nil {
		return Placeholder{}, fmt.Errorf("upload: serialize pending status: %w", err)
	}
	if err := m.coord.SetEX(ctx, coordinator.UploadStatusKey(id), data, m.cfg.StatusTTL); err != nil {
		return Placeholder{}, fmt.Errorf("upload: publish pending status: %w", err)
	}

	m.mu.Lock()
	m.futures[id] = &localFuture{done: make(chan struct{})}
	m.submittedAt[id] = producedAt
	m.filenames[id] = filename
	m.mu.Unlock()

	select {
	case m.jobs <- job{uploadID: id, localPath: localPath}:
	case <-ctx.Done():
		return Placeholder{}, ctx.Err()
	case <-m.stopCh:
		return Placeholder{}, fmt.Errorf("upload: manager stopped")
	}

	return Placeholder{UploadID: id}, nil
}

func (m *Manager) runWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case j := <-m.jobs:
			m.process(j)
		}
	}
}

func (m *Manager) process(j job) {
	ctx := context.Background()
	result, err := m.uploader.Upload(ctx, j.localPath)

	status := model.UploadStatus{Timestamp: time.Now().Unix()}
	m.mu.RLock()
	status.Filename = m.filenames[j.uploadID]
	m.mu.RUnlock()

	if err != nil {
		slog.Error("upload failed", "upload_id", j.uploadID, "path", j.localPath, "error", err)
		status.Status = model.UploadFailed
	} else {
		status.Status = model.UploadCompleted
		status.Result = &result
	}

	data, serr := model.SerializeUploadStatus(status)
	if serr != nil {
		slog.Error("upload: serialize terminal status", "upload_id", j.uploadID, "error", serr)
	} else if err := m.coord.SetEX(ctx, coordinator.UploadStatusKey(j.uploadID), data, m.cfg.StatusTTL); err != nil {
		slog.Error("upload: publish terminal status", "upload_id", j.uploadID, "error", err)
	}

	m.mu.Lock()
	if f, ok := m.futures[j.uploadID]; ok {
		f.status = status
		close(f.done)
	}
	m.mu.Unlock()
}

// Status resolves a Placeholder's current state. It always prefers the
// coordinator read; it falls back to a local future only when the
// coordinator key is absent and this pod owns the submission, and otherwise
// reports model.UploadUnknown (treated by callers as terminal failure).
func (m *Manager) Status(ctx context.Context, p Placeholder) (model.UploadStatus, error) {
	data, ok, err := m.coord.Get(ctx, coordinator.UploadStatusKey(p.UploadID))
	if err != nil {
		return model.UploadStatus{}, err
	}
	if ok {
		return model.DeserializeUploadStatus(data)
	}

	m.mu.RLock()
	f, owned := m.futures[p.UploadID]
	m.mu.RUnlock()
	if owned {
		select {
		case <-f.done:
			return f.status, nil
		default:
			return model.UploadStatus{Status: model.UploadPending}, nil
		}
	}
	return model.UploadStatus{Status: model.UploadUnknown}, nil
}

// Wait blocks until p resolves to a terminal coordinator status or timeout
// elapses, mirroring the original's wait_for_upload(placeholder, timeout).
func (m *Manager) Wait(ctx context.Context, p Placeholder, timeout time.Duration) (model.UploadStatus, error) {
	deadline := time.Now().Add(timeout)
	for {
		status, err := m.Status(ctx, p)
		if err != nil {
			return model.UploadStatus{}, err
		}
		if status.Status == model.UploadCompleted || status.Status == model.UploadFailed || status.Status == model.UploadUnknown {
			return status, nil
		}
		if time.Now().After(deadline) {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return model.UploadStatus{}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release drops this pod's local bookkeeping for an upload once it has been
// consumed; the coordinator's status record remains until its TTL expires
// to serve late readers on other pods.
func (m *Manager) Release(uploadID string) {
	m.mu.Lock()
	delete(m.futures, uploadID)
	delete(m.submittedAt, uploadID)
	delete(m.filenames, uploadID)
	m.mu.Unlock()
}

// Summary lists every upload this pod currently has local bookkeeping for,
// for operability endpoints. Production code must never SCAN the
// coordinator keyspace on the hot path; this reports only local state.
func (m *Manager) Summary() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.futures))
	for id, f := range m.futures {
		s := Summary{
			UploadID:    id,
			Filename:    m.filenames[id],
			SubmittedAt: m.submittedAt[id],
		}
		select {
		case <-f.done:
			s.Resolved = true
			s.Status = f.status.Status
		default:
			s.Status = model.UploadPending
		}
		out = append(out, s)
	}
	return out
}
