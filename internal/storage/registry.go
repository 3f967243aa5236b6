package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"studentetl/internal/etlerr"
)

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a backend in either role. A backend may leave a role nil
// when it cannot serve it.
type Factory struct {
	School    func(ctx context.Context, cfg Config) (SchoolRepository, error)
	Academics func(ctx context.Context, cfg Config) (AcademicsRepository, error)
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookup(kind string) (Factory, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(strings.TrimSpace(kind))]
	mu.RUnlock()
	if !ok {
		return Factory{}, fmt.Errorf("unsupported storage.kind=%s", kind)
	}
	return f, nil
}

// OpenSchool opens the normalized store. Open and ping failures are returned
// as *etlerr.ConnectionError.
func OpenSchool(ctx context.Context, cfg Config) (SchoolRepository, error) {
	f, err := lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if f.School == nil {
		return nil, fmt.Errorf("storage.kind=%s cannot hold the %s store", cfg.Kind, RoleSchool)
	}
	repo, err := f.School(ctx, cfg)
	if err != nil {
		return nil, &etlerr.ConnectionError{Store: string(RoleSchool), Err: err}
	}
	return repo, nil
}

// OpenAcademics opens the academics store. Open and ping failures are
// returned as *etlerr.ConnectionError.
func OpenAcademics(ctx context.Context, cfg Config) (AcademicsRepository, error) {
	f, err := lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if f.Academics == nil {
		return nil, fmt.Errorf("storage.kind=%s cannot hold the %s store", cfg.Kind, RoleAcademics)
	}
	repo, err := f.Academics(ctx, cfg)
	if err != nil {
		return nil, &etlerr.ConnectionError{Store: string(RoleAcademics), Err: err}
	}
	return repo, nil
}
