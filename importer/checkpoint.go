package importer

import (
	"context"
	"sync"
)

// Checkpointer persists import progress so that an interrupted data import
// can resume without resending packages.
//
// Implementations must be safe for concurrent use.
type Checkpointer interface {
	// Load returns the number of packages already completed for job, or 0.
	Load(ctx context.Context, job string) (int, error)

	// Save records that done packages of job have completed.
	Save(ctx context.Context, job string, done int) error

	// Delete removes the checkpoint of job. Deleting a missing job is not an error.
	Delete(ctx context.Context, job string) error
}

// MemoryCheckpointer keeps checkpoints in process memory.
type MemoryCheckpointer struct {
	mu   sync.Mutex
	jobs map[string]int
}

var _ Checkpointer = (*MemoryCheckpointer)(nil)

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{jobs: make(map[string]int)}
}

// Load implements Checkpointer.
func (m *MemoryCheckpointer) Load(_ context.Context, job string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.jobs[job], nil
}

// Save implements Checkpointer.
func (m *MemoryCheckpointer) Save(_ context.Context, job string, done int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[job] = done

	return nil
}

// Delete implements Checkpointer.
func (m *MemoryCheckpointer) Delete(_ context.Context, job string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.jobs, job)

	return nil
}
