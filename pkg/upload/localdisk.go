package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mirixhq/mirixcore/pkg/model"
)

// LocalDiskUploader implements Uploader by copying the local file into a
// configured staging directory and reporting it as an "other" result
// referenced by its new path. It exists so this core is runnable end-to-end
// without requiring a cloud object-store SDK. Production deployments
// wanting real object storage supply their own Uploader.
type LocalDiskUploader struct {
	StagingDir string
}

// NewLocalDiskUploader constructs a LocalDiskUploader rooted at dir,
// creating it if necessary.
func NewLocalDiskUploader(dir string) (*LocalDiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create staging dir %s: %w", dir, err)
	}
	return &LocalDiskUploader{StagingDir: dir}, nil
}

// Upload implements Uploader.
func (u *LocalDiskUploader) Upload(ctx context.Context, localPath string) (model.UploadResult, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("upload: open %s: %w", localPath, err)
	}
	defer src.Close()

	destName := uuid.NewString() + filepath.Ext(localPath)
	destPath := filepath.Join(u.StagingDir, destName)
	dst, err := os.Create(destPath)
	if err != nil {
		return model.UploadResult{}, fmt.Errorf("upload: create %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return model.UploadResult{}, fmt.Errorf("upload: copy %s to %s: %w", localPath, destPath, err)
	}

	now := time.Now().UTC()
	return model.UploadResult{
		Type:       model.UploadResultOther,
		Value:      destPath,
		URI:        "file://" + destPath,
		Name:       filepath.Base(localPath),
		CreateTime: &now,
	}, nil
}
