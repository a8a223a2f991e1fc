// Package upload owns asynchronous large-file uploads to an external object
// store. It returns opaque placeholder handles immediately and publishes
// terminal status into the coordinator so any pod can observe it.
package upload

import (
	"context"
	"time"

	"github.com/mirixhq/mirixcore/pkg/model"
)

// Placeholder is the opaque handle returned by Submit before a file finishes
// uploading. Callers must not assume it is resolvable from local memory
// alone once its owning pod is gone.
type Placeholder struct {
	UploadID string
}

// Uploader performs the actual transfer to the external object store /
// model-file API. Production wiring supplies a concrete client; tests
// supply a fixture.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (model.UploadResult, error)
}

// UploaderFunc adapts a plain function to the Uploader interface.
type UploaderFunc func(ctx context.Context, localPath string) (model.UploadResult, error)

func (f UploaderFunc) Upload(ctx context.Context, localPath string) (model.UploadResult, error) {
	return f(ctx, localPath)
}

// Summary is the debug/operability view of one in-flight or recently
// resolved upload, grounded on the original's upload_start_times tracking
// and get_upload_status_summary.
type Summary struct {
	UploadID    string
	Filename    string
	SubmittedAt time.Time
	Resolved    bool
	Status      model.UploadState
}
