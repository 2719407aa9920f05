package worker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type SweepRecorder interface {
	RecordSessionsSwept(count int64)
}

// SweepJob deletes expired sessions.
type SweepJob struct {
	sessions SessionSweeper
	recorder SweepRecorder
	logger   logrus.FieldLogger
}

func NewSweepJob(sessions SessionSweeper, recorder SweepRecorder, logger logrus.FieldLogger) *SweepJob {
	return &SweepJob{sessions: sessions, recorder: recorder, logger: logger}
}

func (j *SweepJob) Name() string { return "session-sweep" }

func (j *SweepJob) Run(ctx context.Context) error {
	removed, err := j.sessions.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep sessions: %w", err)
	}
	if j.recorder != nil {
		j.recorder.RecordSessionsSwept(removed)
	}
	if removed > 0 {
		j.logger.WithField("removed", removed).Info("expired sessions removed")
	}
	return nil
}

// LogRotator hands the current error log to a callback and empties it on success.
type LogRotator interface {
	Rotate(fn func(path string) error) error
}

type LogArchiver interface {
	Archive(ctx context.Context, localPath string) (string, error)
}

// ArchiveJob uploads the error log and clears it once the upload succeeded.
type ArchiveJob struct {
	log      LogRotator
	archiver LogArchiver
	logger   logrus.FieldLogger
}

func NewArchiveJob(log LogRotator, archiver LogArchiver, logger logrus.FieldLogger) *ArchiveJob {
	return &ArchiveJob{log: log, archiver: archiver, logger: logger}
}

func (j *ArchiveJob) Name() string { return "error-log-archive" }

func (j *ArchiveJob) Run(ctx context.Context) error {
	var location string
	err := j.log.Rotate(func(path string) error {
		var err error
		location, err = j.archiver.Archive(ctx, path)
		return err
	})
	if err != nil {
		return fmt.Errorf("archive error log: %w", err)
	}
	if location != "" {
		j.logger.WithField("location", location).Info("error log archived")
	}
	return nil
}
