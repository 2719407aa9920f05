package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"
)

const archiveTimeLayout = "20060102T150405Z"

// Archiver copies the local error log into a bucket under a timestamped key.
type Archiver struct {
	store     Service
	bucket    string
	keyPrefix string
	now       func() time.Time
}

func NewArchiver(store Service, bucket, keyPrefix string) *Archiver {
	return &Archiver{
		store:     store,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		now:       time.Now,
	}
}

// Key returns the object key used for an upload made at t.
func (a *Archiver) Key(t time.Time) string {
	name := t.UTC().Format(archiveTimeLayout) + "-errors.log"
	if a.keyPrefix == "" {
		return name
	}
	return path.Join(a.keyPrefix, name)
}

// Archive uploads localPath and returns the object location. Empty or
// missing files are skipped and yield an empty location.
func (a *Archiver) Archive(ctx context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat error log: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}

	return a.store.UploadFile(ctx, localPath, a.bucket, a.Key(a.now()))
}

// Archived lists previously uploaded error logs.
func (a *Archiver) Archived(ctx context.Context) ([]ObjectInfo, error) {
	prefix := a.keyPrefix
	if prefix != "" {
		prefix += "/"
	}
	return a.store.ListObjects(ctx, a.bucket, prefix)
}
