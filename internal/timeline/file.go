package timeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FileRecorder appends actions to a JSONL file, one entry per line.
// Completion writes a second line for the same action id rather than
// rewriting the file; readers reconstruct final state by last-wins.
type FileRecorder struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	seq  uint64
	path string
}

// NewFileRecorder opens (or creates) a timeline file at path, creating
// parent directories as needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating timeline directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening timeline file: %w", err)
	}
	return &FileRecorder{f: f, w: bufio.NewWriter(f), path: path}, nil
}

// Path returns the timeline file location.
func (r *FileRecorder) Path() string { return r.path }

// RecordAction appends a started action entry and returns its id.
func (r *FileRecorder) RecordAction(ctx context.Context, a Action) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.SeqID = atomic.AddUint64(&r.seq, 1)
	a.Status = StatusStarted
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now().UTC()
	}
	if err := r.append(a); err != nil {
		return "", err
	}
	return a.ID, nil
}

// CompleteAction appends a completion entry for a previously recorded
// action.
func (r *FileRecorder) CompleteAction(ctx context.Context, id, status, result, errMsg string) error {
	now := time.Now().UTC()
	return r.append(Action{
		ID:      id,
		SeqID:   atomic.AddUint64(&r.seq, 1),
		Status:  status,
		Result:  result,
		Error:   errMsg,
		EndedAt: &now,
	})
}

func (r *FileRecorder) append(a Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding timeline entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.w.Write(data); err != nil {
		return fmt.Errorf("writing timeline entry: %w", err)
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing timeline entry: %w", err)
	}
	// Flush per entry so a crash loses at most the in-flight line.
	return r.w.Flush()
}

// Close flushes and closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// Load reads a timeline file back into final-state actions, collapsing
// start/complete entry pairs by action id. Entry order is preserved.
func Load(path string) ([]Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening timeline file: %w", err)
	}
	defer f.Close()

	byID := map[string]int{}
	var actions []Action

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var a Action
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, fmt.Errorf("decoding timeline entry: %w", err)
		}

		if idx, ok := byID[a.ID]; ok {
			prev := &actions[idx]
			prev.Status = a.Status
			prev.Result = a.Result
			prev.Error = a.Error
			prev.EndedAt = a.EndedAt
			continue
		}
		byID[a.ID] = len(actions)
		actions = append(actions, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading timeline file: %w", err)
	}
	return actions, nil
}
