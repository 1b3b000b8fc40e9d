package store

import (
	"context"
	"fmt"
	"sort"
)

// CascadePlan is the full set of ids removed by deleting one entity.
type CascadePlan struct {
	// Kind and ID name the entity the delete was issued for.
	Kind Kind
	ID   string

	// Removals maps each kind to the ids that will be removed, including the root.
	Removals map[Kind][]string
}

// Count returns the number of ids of kind in the plan.
func (p *CascadePlan) Count(kind Kind) int {
	return len(p.Removals[kind])
}

// Total returns the number of ids in the plan.
func (p *CascadePlan) Total() int {
	n := 0
	for _, ids := range p.Removals {
		n += len(ids)
	}
	return n
}

// Contains reports whether the plan removes id of kind.
func (p *CascadePlan) Contains(kind Kind, id string) bool {
	for _, v := range p.Removals[kind] {
		if v == id {
			return true
		}
	}
	return false
}

// planCascade computes, breadth-first from (kind, id), the ids of every
// descendant reachable through the registry. It reads the collections but
// never mutates them.
func (s *Store) planCascade(ctx context.Context, kind Kind, id string) (*CascadePlan, error) {
	plan := &CascadePlan{
		Kind:     kind,
		ID:       id,
		Removals: map[Kind][]string{kind: {id}},
	}
	if !s.registry.HasChildren(kind) {
		return plan, nil
	}

	type level struct {
		kind Kind
		ids  map[string]struct{}
	}
	queue := []level{{kind: kind, ids: map[string]struct{}{id: {}}}}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, rel := range s.registry.ChildrenOf(parent.kind) {
			coll, err := s.collection(rel.ChildKind)
			if err != nil {
				return nil, err
			}
			children, err := coll.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", rel.ChildKind.Plural(), err)
			}

			removed := make(map[string]struct{})
			for _, child := range children {
				if _, ok := parent.ids[child.ParentID]; ok {
					removed[child.ID] = struct{}{}
				}
			}
			if len(removed) == 0 {
				continue
			}

			ids := make([]string, 0, len(removed))
			for childID := range removed {
				ids = append(ids, childID)
			}
			sort.Strings(ids)
			plan.Removals[rel.ChildKind] = append(plan.Removals[rel.ChildKind], ids...)
			queue = append(queue, level{kind: rel.ChildKind, ids: removed})
		}
	}

	return plan, nil
}

// applyCascade deletes every id in the plan. Deletes tolerate absent ids.
func (s *Store) applyCascade(ctx context.Context, plan *CascadePlan) error {
	for _, kind := range Kinds() {
		ids := plan.Removals[kind]
		if len(ids) == 0 {
			continue
		}
		coll, err := s.collection(kind)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := coll.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete %s %s: %w", kind, id, err)
			}
		}
	}
	return nil
}
