// Package logging builds the process logger and persists error entries to a local file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options mirrors the log section of the application config.
type Options struct {
	Level     string
	Format    string
	ErrorFile string
	Output    io.Writer
}

// New returns a configured logger. The hook is nil when no error file is configured.
func New(opts Options) (*logrus.Logger, *ErrorFileHook, error) {
	logger := logrus.New()
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	}

	switch opts.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level := opts.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(parsed)

	if strings.TrimSpace(opts.ErrorFile) == "" {
		return logger, nil, nil
	}

	hook, err := NewErrorFileHook(opts.ErrorFile)
	if err != nil {
		return nil, nil, err
	}
	logger.AddHook(hook)
	return logger, hook, nil
}

// ErrorFileHook appends error, fatal and panic entries to a plain text file,
// one line per entry.
type ErrorFileHook struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func NewErrorFileHook(path string) (*ErrorFileHook, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create error log dir: %w", err)
		}
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &ErrorFileHook{path: path, file: f}, nil
}

// Path reports where entries are written.
func (h *ErrorFileHook) Path() string {
	return h.path
}

func (h *ErrorFileHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *ErrorFileHook) Fire(entry *logrus.Entry) error {
	line := FormatErrorLine(entry.Time, entry.Message, entry.Data)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	_, err := io.WriteString(h.file, line)
	return err
}

// Rotate moves the current contents to a snapshot file and hands its path to fn.
// Entries fired while fn runs go to a fresh file. The snapshot is removed once fn
// succeeds; on failure it is put back in front of the newer entries.
func (h *ErrorFileHook) Rotate(fn func(path string) error) error {
	snapshot, err := h.cut()
	if err != nil {
		return err
	}

	if err := fn(snapshot); err != nil {
		if restoreErr := h.restore(snapshot); restoreErr != nil {
			return fmt.Errorf("%w (restore error log: %v)", err, restoreErr)
		}
		return err
	}
	if err := os.Remove(snapshot); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove error log snapshot: %w", err)
	}
	return nil
}

func (h *ErrorFileHook) cut() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return "", os.ErrClosed
	}

	if err := h.file.Sync(); err != nil {
		return "", fmt.Errorf("sync error log: %w", err)
	}
	snapshot := fmt.Sprintf("%s.%d", h.path, time.Now().UnixNano())
	if err := os.Rename(h.path, snapshot); err != nil {
		return "", fmt.Errorf("snapshot error log: %w", err)
	}
	if err := h.reopen(); err != nil {
		_ = os.Rename(snapshot, h.path)
		return "", err
	}
	return snapshot, nil
}

// restore appends entries written since the cut to the snapshot and moves it back into place.
func (h *ErrorFileHook) restore(snapshot string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	newer, err := os.ReadFile(h.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read error log: %w", err)
	}
	if len(newer) > 0 {
		f, err := openAppend(snapshot)
		if err != nil {
			return err
		}
		_, err = f.Write(newer)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("merge error log: %w", err)
		}
	}
	if err := os.Rename(snapshot, h.path); err != nil {
		return fmt.Errorf("restore error log: %w", err)
	}
	if h.file == nil {
		return nil
	}
	return h.reopen()
}

// reopen swaps the handle for one pointing at the file currently at h.path. Callers hold mu.
func (h *ErrorFileHook) reopen() error {
	f, err := openAppend(h.path)
	if err != nil {
		return err
	}
	_ = h.file.Close()
	h.file = f
	return nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	return f, nil
}

func (h *ErrorFileHook) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

// FormatErrorLine renders "<RFC3339 UTC> - ERROR: <message> [k=v ...]" with a trailing newline.
func FormatErrorLine(at time.Time, message string, fields logrus.Fields) string {
	if at.IsZero() {
		at = time.Now()
	}

	var b strings.Builder
	b.WriteString(at.UTC().Format(time.RFC3339))
	b.WriteString(" - ERROR: ")
	b.WriteString(strings.ReplaceAll(message, "\n", " "))

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')
	return b.String()
}
