// Package transcript writes every model exchange to NDJSON files, one file
// per user plus an optional combined file.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/ashureev/prompt-labs/internal/llm"
)

// Config controls transcript logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Entry is one line of a transcript file.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	UserID    string    `json:"user_id,omitempty"`
	Purpose   string    `json:"purpose"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	LatencyMs int64     `json:"latency_ms"`
	Prompt    int       `json:"prompt_tokens"`
	Output    int       `json:"completion_tokens"`
	Total     int       `json:"total_tokens"`
	Request   string    `json:"request"`
	Response  string    `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

const anonymousFile = "_anonymous"

// Logger queues entries and writes them from a single goroutine. Entries
// are dropped with a warning when the queue is full.
type Logger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Entry

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	files  map[string]*os.File // long-lived handles, global file only
}

// New starts a Logger. A disabled config yields a Logger that discards
// everything.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{cfg: cfg, logger: logger, done: make(chan struct{}), files: map[string]*os.File{}}
	if !cfg.Enabled {
		l.closed = true
		close(l.done)
		return l, nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
		l.cfg.QueueSize = cfg.QueueSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global transcript directory: %w", err)
		}
	}

	l.queue = make(chan Entry, cfg.QueueSize)
	go l.run()
	return l, nil
}

// RecordExchange implements llm.Recorder.
func (l *Logger) RecordExchange(_ context.Context, ex llm.Exchange) {
	l.Log(Entry{
		Timestamp: time.Now().UTC(),
		UserID:    ex.UserID,
		Purpose:   ex.Purpose,
		Provider:  ex.Provider,
		Model:     ex.Model,
		LatencyMs: ex.LatencyMs,
		Prompt:    ex.Usage.PromptTokens,
		Output:    ex.Usage.CompletionTokens,
		Total:     ex.Usage.TotalTokens,
		Request:   ex.Request,
		Response:  ex.Response,
		Error:     ex.Err,
	})
}

// Log enqueues e without blocking.
func (l *Logger) Log(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		l.logger.Warn("Transcript queue full, dropping entry", "user_id", e.UserID, "purpose", e.Purpose)
	}
}

// Close drains the queue and closes all files.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done

	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		line, err := json.Marshal(e)
		if err != nil {
			l.logger.Warn("Failed to encode transcript entry", "error", err)
			continue
		}
		line = append(line, '\n')

		name := unsafeName.ReplaceAllString(e.UserID, "_")
		if name == "" {
			name = anonymousFile
		}
		l.write(filepath.Join(l.cfg.Dir, name+".ndjson"), line)
		if l.cfg.GlobalEnabled {
			l.writeGlobal(line)
		}
	}
}

// write appends line to path. Per-user files are opened and closed for
// every entry; only the global file keeps a handle across entries.
func (l *Logger) write(path string, line []byte) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Warn("Failed to open transcript file", "path", path, "error", err)
		return
	}
	if _, err := f.Write(line); err != nil {
		l.logger.Warn("Failed to write transcript entry", "path", path, "error", err)
	}
	if err := f.Close(); err != nil {
		l.logger.Warn("Failed to close transcript file", "path", path, "error", err)
	}
}

func (l *Logger) writeGlobal(line []byte) {
	path := l.cfg.GlobalPath
	f, ok := l.files[path]
	if !ok {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			l.logger.Warn("Failed to open transcript file", "path", path, "error", err)
			return
		}
		l.files[path] = f
	}
	if _, err := f.Write(line); err != nil {
		l.logger.Warn("Failed to write transcript entry", "path", path, "error", err)
	}
}
