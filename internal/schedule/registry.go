package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry and Build.
// It is satisfied by logging.Logger and matches sequence.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides definition management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the CRUD methods.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Definition // Cached definitions by ID
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new definition registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Definition),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Repository returns the underlying repository, used for execution records.
func (r *Registry) Repository() Repository {
	return r.repo
}

// RefreshCache reloads all definitions from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	defs, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading sequences: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Definition, len(defs))
	for i := range defs {
		r.cache[defs[i].ID] = defs[i].DeepCopy()
	}

	r.logger.Info("sequence cache refreshed", "count", len(defs))
	return nil
}

// Get retrieves a definition by ID. The returned value is a deep copy.
func (r *Registry) Get(_ context.Context, id string) (*Definition, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrNotFound
}

// GetBySlug retrieves a definition by its slug.
func (r *Registry) GetBySlug(_ context.Context, slug string) (*Definition, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, d := range r.cache {
		if d.Slug == slug {
			return d.DeepCopy(), nil
		}
	}
	return nil, ErrNotFound
}

// Lookup resolves a reference that may be either an ID or a slug.
func (r *Registry) Lookup(ctx context.Context, ref string) (*Definition, error) {
	def, err := r.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return r.GetBySlug(ctx, ref)
	}
	return def, err
}

// List returns all cached definitions sorted by name.
func (r *Registry) List(_ context.Context) ([]Definition, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	defs := make([]Definition, 0, len(r.cache))
	for _, d := range r.cache {
		defs = append(defs, *d.DeepCopy())
	}
	sortDefinitions(defs)
	return defs, nil
}

// sortDefinitions matches the repository ordering.
func sortDefinitions(defs []Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Name != defs[j].Name {
			return defs[i].Name < defs[j].Name
		}
		return defs[i].Slug < defs[j].Slug
	})
}

// Create validates, persists and caches a new definition. Missing IDs and
// slugs are generated.
func (r *Registry) Create(ctx context.Context, def *Definition) error {
	if def.ID == "" {
		def.ID = GenerateID()
	}
	if def.Slug == "" {
		def.Slug = GenerateSlug(def.Name)
	}

	if err := Validate(def); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, def); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[def.ID] = def.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("sequence created", "id", def.ID, "name", def.Name, "groups", len(def.Groups))
	return nil
}

// Update validates, persists and re-caches a definition.
func (r *Registry) Update(ctx context.Context, def *Definition) error {
	if err := Validate(def); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, def); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[def.ID] = def.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("sequence updated", "id", def.ID, "name", def.Name)
	return nil
}

// Import creates def, or replaces the stored definition with the same
// slug while keeping its ID. It reports whether an existing definition
// was replaced.
func (r *Registry) Import(ctx context.Context, def *Definition) (bool, error) {
	if def.Slug == "" {
		def.Slug = GenerateSlug(def.Name)
	}

	existing, err := r.GetBySlug(ctx, def.Slug)
	if errors.Is(err, ErrNotFound) {
		return false, r.Create(ctx, def)
	}
	if err != nil {
		return false, err
	}

	def.ID = existing.ID
	def.CreatedAt = existing.CreatedAt
	return true, r.Update(ctx, def)
}

// Delete removes a definition from persistence and cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("sequence deleted", "id", id)
	return nil
}

// Count returns the number of cached definitions.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
