package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatErrorLine(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	line := FormatErrorLine(at, "delete agenda\nfailed", logrus.Fields{"user_id": 7, "agenda_id": 3})

	assert.Equal(t, "2024-03-01T15:30:00Z - ERROR: delete agenda failed agenda_id=3 user_id=7\n", line)
}

func TestNew_ErrorHookWritesOnlyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "errors.log")
	var out bytes.Buffer

	logger, hook, err := New(Options{Level: "debug", Format: "text", ErrorFile: path, Output: &out})
	require.NoError(t, err)
	require.NotNil(t, hook)
	assert.Equal(t, path, hook.Path())
	t.Cleanup(func() { _ = hook.Close() })

	logger.Info("started")
	logger.WithField("op", "agenda.delete").Warn("slow")
	logger.WithError(errors.New("disk full")).Error("store failure")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " - ERROR: store failure")
	assert.Contains(t, lines[0], "error=disk full")
	assert.Contains(t, out.String(), "started")
}

func TestNew_WithoutErrorFile(t *testing.T) {
	var out bytes.Buffer
	logger, hook, err := New(Options{Format: "json", Output: &out})
	require.NoError(t, err)
	assert.Nil(t, hook)
	require.NoError(t, hook.Close())

	logger.Error("boom")
	assert.Contains(t, out.String(), `"msg":"boom"`)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestErrorFileHook_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")

	for i := 0; i < 2; i++ {
		hook, err := NewErrorFileHook(path)
		require.NoError(t, err)
		require.NoError(t, hook.Fire(&logrus.Entry{Time: time.Now(), Message: "entry"}))
		require.NoError(t, hook.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "ERROR: entry"))
}

func TestErrorFileHook_Rotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	hook, err := NewErrorFileHook(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hook.Close() })

	require.NoError(t, hook.Fire(&logrus.Entry{Time: time.Now(), Message: "first"}))

	var archived string
	require.NoError(t, hook.Rotate(func(p string) error {
		data, err := os.ReadFile(p)
		archived = string(data)
		return err
	}))
	assert.Contains(t, archived, "ERROR: first")

	require.NoError(t, hook.Fire(&logrus.Entry{Time: time.Now(), Message: "second"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "first")
	assert.Contains(t, string(data), "ERROR: second")
	assertNoSnapshots(t, path)
}

func TestErrorFileHook_RotateKeepsContentOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	hook, err := NewErrorFileHook(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hook.Close() })

	require.NoError(t, hook.Fire(&logrus.Entry{Time: time.Now(), Message: "kept"}))
	err = hook.Rotate(func(string) error { return errors.New("upload failed") })
	assert.EqualError(t, err, "upload failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assertNoSnapshots(t, path)
}

func TestErrorFileHook_EntriesDoNotWaitForRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	logger, hook, err := New(Options{Level: "info", ErrorFile: path, Output: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hook.Close() })

	logger.Error("before upload")

	uploading := make(chan struct{})
	release := make(chan struct{})
	rotated := make(chan error, 1)
	var archived string
	go func() {
		rotated <- hook.Rotate(func(p string) error {
			data, err := os.ReadFile(p)
			archived = string(data)
			close(uploading)
			<-release
			return err
		})
	}()
	<-uploading

	logged := make(chan struct{})
	go func() {
		logger.Error("request failed")
		close(logged)
	}()
	select {
	case <-logged:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("error entry blocked while the log was being uploaded")
	}

	close(release)
	require.NoError(t, <-rotated)
	assert.Contains(t, archived, "before upload")
	assert.NotContains(t, archived, "request failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before upload")
	assert.Contains(t, string(data), "ERROR: request failed")
	assertNoSnapshots(t, path)
}

func TestErrorFileHook_FailedRotationKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	hook, err := NewErrorFileHook(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hook.Close() })

	require.NoError(t, hook.Fire(&logrus.Entry{Time: time.Now(), Message: "older"}))
	err = hook.Rotate(func(string) error {
		require.NoError(t, hook.Fire(&logrus.Entry{Time: time.Now(), Message: "during"}))
		return errors.New("bucket unreachable")
	})
	require.EqualError(t, err, "bucket unreachable")

	require.NoError(t, hook.Fire(&logrus.Entry{Time: time.Now(), Message: "after"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	older := strings.Index(content, "ERROR: older")
	during := strings.Index(content, "ERROR: during")
	after := strings.Index(content, "ERROR: after")
	require.True(t, older >= 0 && during >= 0 && after >= 0, content)
	assert.Less(t, older, during)
	assert.Less(t, during, after)
	assertNoSnapshots(t, path)
}

func assertNoSnapshots(t *testing.T, path string) {
	t.Helper()
	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}
