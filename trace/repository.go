package trace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// Repository is the interface for persisting trace data.
type Repository interface {
	Save(ctx context.Context, trace *Trace) error
}

// FileRepository writes each trace as an indented JSON file named {trace_id}.json.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a FileRepository writing into dir. The directory
// is created on first save.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Save writes the trace as JSON.
func (r *FileRepository) Save(_ context.Context, trace *Trace) error {
	if trace == nil {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create trace directory", goerr.V("dir", r.dir))
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace", goerr.V("trace_id", trace.TraceID))
	}

	path := filepath.Join(r.dir, trace.TraceID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write trace file", goerr.V("path", path))
	}

	return nil
}

// MemoryRepository keeps saved traces in memory. It is meant for tests and for
// callers that post-process traces themselves.
type MemoryRepository struct {
	mu     sync.Mutex
	traces []*Trace
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(_ context.Context, trace *Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, trace)
	return nil
}

// Traces returns the saved traces in save order.
func (r *MemoryRepository) Traces() []*Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Trace(nil), r.traces...)
}
