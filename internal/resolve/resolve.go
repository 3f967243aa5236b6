// Package resolve turns department and subject names into store ids,
// creating the rows on first sight.
//
// Each name goes through a small state machine:
//
//	cache -> insert -> done
//	           |
//	           +-> lookup -> done | LookupError
//
// The insert never modifies an existing row. When it reports no id (the key
// already existed and the store cannot return it) or fails (a concurrent
// writer won the race), the resolver falls back to a lookup by name.
package resolve

import (
	"context"
	"errors"

	"studentetl/internal/etlerr"
	"studentetl/internal/storage"
)

// Repository is the part of the school store the resolver needs.
type Repository interface {
	InsertDepartment(ctx context.Context, name string) (storage.KeyResult, error)
	FindDepartment(ctx context.Context, name string) (int64, bool, error)
	InsertSubject(ctx context.Context, name string, departmentID int64) (storage.KeyResult, error)
	FindSubject(ctx context.Context, name string) (int64, bool, error)
}

// Outcome says how an id was obtained.
type Outcome int

const (
	Cached Outcome = iota
	Created
	Existing
)

func (o Outcome) String() string {
	switch o {
	case Cached:
		return "cached"
	case Created:
		return "created"
	case Existing:
		return "existing"
	default:
		return "unknown"
	}
}

// Resolution is a resolved id and how it was obtained.
type Resolution struct {
	ID      int64
	Outcome Outcome
}

// Cache maps natural keys to ids for one run. It is not safe for concurrent
// use; a run owns exactly one.
type Cache struct {
	departments map[string]int64
	subjects    map[string]int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		departments: make(map[string]int64),
		subjects:    make(map[string]int64),
	}
}

// Len returns the number of cached departments and subjects.
func (c *Cache) Len() (departments, subjects int) {
	return len(c.departments), len(c.subjects)
}

// Resolver resolves names against a Repository through a Cache.
type Resolver struct {
	repo  Repository
	cache *Cache
}

// New returns a resolver. A nil cache gets a fresh one.
func New(repo Repository, cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{repo: repo, cache: cache}
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Department resolves a department name.
func (r *Resolver) Department(ctx context.Context, name string) (Resolution, error) {
	return r.resolve(ctx, "department", name, r.cache.departments,
		func() (storage.KeyResult, error) { return r.repo.InsertDepartment(ctx, name) },
		func() (int64, bool, error) { return r.repo.FindDepartment(ctx, name) })
}

// Subject resolves a subject name. departmentID is used only when the
// subject is created; an existing subject keeps its department.
func (r *Resolver) Subject(ctx context.Context, name string, departmentID int64) (Resolution, error) {
	return r.resolve(ctx, "subject", name, r.cache.subjects,
		func() (storage.KeyResult, error) { return r.repo.InsertSubject(ctx, name, departmentID) },
		func() (int64, bool, error) { return r.repo.FindSubject(ctx, name) })
}

type state int

const (
	stateCache state = iota
	stateInsert
	stateLookup
	stateDone
)

func (r *Resolver) resolve(
	ctx context.Context,
	entity, key string,
	ids map[string]int64,
	insert func() (storage.KeyResult, error),
	find func() (int64, bool, error),
) (Resolution, error) {
	var (
		res       Resolution
		insertErr error
	)
	for st := stateCache; ; {
		switch st {
		case stateCache:
			if id, ok := ids[key]; ok {
				return Resolution{ID: id, Outcome: Cached}, nil
			}
			st = stateInsert

		case stateInsert:
			kr, err := insert()
			if err != nil || kr.ID == 0 {
				insertErr = err
				st = stateLookup
				continue
			}
			res = Resolution{ID: kr.ID, Outcome: Existing}
			if kr.Created {
				res.Outcome = Created
			}
			st = stateDone

		case stateLookup:
			if err := ctx.Err(); err != nil {
				return Resolution{}, &etlerr.LookupError{Entity: entity, Key: key, Err: errors.Join(insertErr, err)}
			}
			id, found, err := find()
			if err != nil {
				return Resolution{}, &etlerr.LookupError{Entity: entity, Key: key, Err: errors.Join(insertErr, err)}
			}
			if !found {
				return Resolution{}, &etlerr.LookupError{Entity: entity, Key: key, Err: insertErr}
			}
			res = Resolution{ID: id, Outcome: Existing}
			st = stateDone

		case stateDone:
			ids[key] = res.ID
			return res, nil
		}
	}
}
