package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Registry resolves project ids to their *Store, opening each project's
// SQLite shard lazily and caching the handle — the same role the teacher's
// veille.Service.resolveStore / PoolResolver plays for per-tenant shards,
// generalized here to per-project shards with no tenant dimension.
type Registry struct {
	dataDir string
	logger  *slog.Logger

	mu    sync.Mutex
	open  map[string]*Store
}

// NewRegistry returns a Registry rooted at dataDir, where each project's
// shard lives at <dataDir>/<project_id>.db.
func NewRegistry(dataDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dataDir: dataDir,
		logger:  logger,
		open:    make(map[string]*Store),
	}
}

func (r *Registry) path(projectID string) string {
	return filepath.Join(r.dataDir, projectID+".db")
}

// Create opens a new project shard and writes its project row. Returns an
// error if the shard file already exists.
func (r *Registry) Create(ctx context.Context, projectID, researchQuestion, agentID string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path(projectID)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("store: project %s already exists", projectID)
	}

	st, err := Open(path, r.logger.With("project_id", projectID))
	if err != nil {
		return nil, err
	}
	if err := st.CreateProject(ctx, projectID, researchQuestion, agentID); err != nil {
		st.Close()
		os.Remove(path)
		return nil, err
	}

	r.open[projectID] = st
	return st, nil
}

// Get returns the *Store for projectID, opening its shard file if it is not
// already cached in-process. Returns ErrProjectNotFound if no shard file
// exists for projectID.
func (r *Registry) Get(ctx context.Context, projectID string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.open[projectID]; ok {
		return st, nil
	}

	path := r.path(projectID)
	if _, err := os.Stat(path); err != nil {
		return nil, ErrProjectNotFound
	}

	st, err := Open(path, r.logger.With("project_id", projectID))
	if err != nil {
		return nil, err
	}
	r.open[projectID] = st
	return st, nil
}

// Delete closes and permanently removes a project's shard and all data it
// owns (spec.md §3: "deleted removes all owned data").
func (r *Registry) Delete(projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.open[projectID]; ok {
		st.Close()
		delete(r.open, projectID)
	}
	return os.Remove(r.path(projectID))
}

// Close closes every cached Store handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, st := range r.open {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.open, id)
	}
	return firstErr
}
