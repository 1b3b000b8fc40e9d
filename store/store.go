package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store provides guarded CRUD over the menu hierarchy.
//
// Every operation runs inside one mutex-held region: the existence guard,
// cascade planning and all writes of a request are never interleaved with
// another request's.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	config   Config
	registry *Registry
	newID    IDGenerator
	logger   *slog.Logger
}

// New creates a new Store over backend using the default hierarchy.
func New(backend Backend, config Config) *Store {
	return NewWithRegistry(backend, config, DefaultRegistry())
}

// NewWithRegistry creates a new Store instance with a relationship registry.
func NewWithRegistry(backend Backend, config Config, registry *Registry) *Store {
	config.validate()
	return &Store{
		backend:  backend,
		config:   config,
		registry: registry,
		newID:    NewID,
		logger:   slog.Default(),
	}
}

// SetLogger replaces the logger. A nil logger restores slog.Default().
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
}

// SetIDGenerator replaces the identifier generator. A nil generator restores NewID.
func (s *Store) SetIDGenerator(gen IDGenerator) {
	if gen == nil {
		gen = NewID
	}
	s.newID = gen
}

// Config returns the store's effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// Registry returns the relationship registry.
func (s *Store) Registry() *Registry {
	return s.registry
}

func (s *Store) collection(kind Kind) (Collection, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	c := s.backend.Collection(kind)
	if c == nil {
		return nil, fmt.Errorf("backend has no collection for %s", kind)
	}
	return c, nil
}

// present sets the JSON name of rec's parent reference from the registry.
func (s *Store) present(rec *Record) *Record {
	if rel, ok := s.registry.ParentOf(rec.Kind); ok {
		rec.parentKey = rel.ParentKeyAttr
	}
	return rec
}

// guard resolves id in the collection of kind, returning a NotFoundError for
// that kind when it is absent.
func (s *Store) guard(ctx context.Context, kind Kind, id string) (*Record, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, notFound(kind, id)
	}
	rec, err := coll.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return rec, nil
}

// Create stores a new entity built from body. The id is always generated;
// any id in body is discarded. For categories and dishes the parent key is
// taken from body and, when ValidateParents is set, must name an existing parent.
func (s *Store) Create(ctx context.Context, kind Kind, body *Fields) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}

	fields := body.Clone()
	fields.Delete(IDField)

	rec := &Record{Kind: kind}
	if rel, ok := s.registry.ParentOf(kind); ok {
		parentID, err := stringField(fields, rel.ParentKeyAttr)
		if err != nil {
			return nil, err
		}
		fields.Delete(rel.ParentKeyAttr)
		rec.ParentID = parentID

		if s.config.ValidateParents {
			if _, err := s.guard(ctx, rel.ParentKind, parentID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, parentNotFound(rel.ParentKind, parentID)
				}
				return nil, err
			}
		}
	}
	rec.Fields = fields
	rec.ID = s.newID()

	if err := coll.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}

	s.logger.Debug("entity created", "kind", kind, "id", rec.ID, "parentId", rec.ParentID)
	return s.present(rec), nil
}

// Get returns the entity of kind with the given id.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.guard(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return s.present(rec), nil
}

// List returns every entity of kind.
func (s *Store) List(ctx context.Context, kind Kind) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	recs, err := coll.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Plural(), err)
	}
	for _, rec := range recs {
		s.present(rec)
	}
	return recs, nil
}

// Children returns the direct children of the given parent, after checking
// the parent exists. A parent without children yields an empty slice.
func (s *Store) Children(ctx context.Context, parentKind Kind, parentID string) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.guard(ctx, parentKind, parentID); err != nil {
		return nil, err
	}

	out := []*Record{}
	for _, rel := range s.registry.ChildrenOf(parentKind) {
		coll, err := s.collection(rel.ChildKind)
		if err != nil {
			return nil, err
		}
		recs, err := coll.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", rel.ChildKind.Plural(), err)
		}
		for _, rec := range recs {
			if rec.ParentID == parentID {
				out = append(out, s.present(rec))
			}
		}
	}
	return out, nil
}

// Update merges patch into the stored entity and returns the result.
func (s *Store) Update(ctx context.Context, kind Kind, id string, patch *Fields) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.guard(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	var parentKey string
	if rel, ok := s.registry.ParentOf(kind); ok {
		parentKey = rel.ParentKeyAttr
	}
	merged, err := Merge(current, patch, parentKey, s.config.KeyPatch)
	if err != nil {
		return nil, err
	}

	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	if err := coll.Replace(ctx, merged); err != nil {
		return nil, fmt.Errorf("replace %s %s: %w", kind, id, err)
	}
	return s.present(merged), nil
}

// Delete removes the entity and every descendant, returning the executed plan.
func (s *Store) Delete(ctx context.Context, kind Kind, id string) (*CascadePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.guard(ctx, kind, id); err != nil {
		return nil, err
	}

	plan, err := s.planCascade(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("plan cascade: %w", err)
	}

	if err := s.applyCascade(ctx, plan); err != nil {
		s.logger.Error("cascade delete failed",
			"kind", kind,
			"id", id,
			"error", err,
		)
		return nil, err
	}

	if plan.Total() > 1 {
		s.logger.Info("cascade delete completed",
			"kind", kind,
			"id", id,
			"categories", plan.Count(KindCategory),
			"dishes", plan.Count(KindDish),
		)
	}
	return plan, nil
}
