package store

// Relationship defines a parent-child relationship for cascade operations.
type Relationship struct {
	// ParentKind is the parent entity kind (e.g., KindMenu).
	ParentKind Kind

	// ChildKind is the child entity kind (e.g., KindCategory).
	ChildKind Kind

	// ParentKeyAttr is the attribute name in child that references parent (e.g., "menuId").
	ParentKeyAttr string
}

// Registry holds all known entity relationships for cascade operations.
type Registry struct {
	relationships []Relationship
	byParent      map[Kind][]Relationship
	byChild       map[Kind]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[Kind][]Relationship),
		byChild:       make(map[Kind]Relationship),
	}
}

// DefaultRegistry returns the menu -> category -> dish hierarchy.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, k := range Kinds() {
		if parent, ok := k.Parent(); ok {
			r.Register(Relationship{
				ParentKind:    parent,
				ChildKind:     k,
				ParentKeyAttr: k.ParentKey(),
			})
		}
	}
	return r
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentKind] = append(r.byParent[rel.ParentKind], rel)
	r.byChild[rel.ChildKind] = rel
}

// ChildrenOf returns all child relationships for a given parent kind.
func (r *Registry) ChildrenOf(parent Kind) []Relationship {
	return r.byParent[parent]
}

// ParentOf returns the relationship in which kind is the child.
func (r *Registry) ParentOf(child Kind) (Relationship, bool) {
	rel, ok := r.byChild[child]
	return rel, ok
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent kind has any registered child relationships.
func (r *Registry) HasChildren(parent Kind) bool {
	return len(r.byParent[parent]) > 0
}
