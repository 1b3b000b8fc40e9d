package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies one of the three entity collections.
type Kind string

const (
	KindMenu     Kind = "menu"
	KindCategory Kind = "category"
	KindDish     Kind = "dish"
)

// IDField is the attribute name of every entity's identifier.
const IDField = "id"

// Kinds returns all kinds, parents before children.
func Kinds() []Kind {
	return []Kind{KindMenu, KindCategory, KindDish}
}

// Title returns the human-readable kind name (e.g., "Menu").
func (k Kind) Title() string {
	switch k {
	case KindMenu:
		return "Menu"
	case KindCategory:
		return "Category"
	case KindDish:
		return "Dish"
	}
	return string(k)
}

// Plural returns the collection name (e.g., "menus").
func (k Kind) Plural() string {
	switch k {
	case KindCategory:
		return "categories"
	case KindDish:
		return "dishes"
	}
	return string(k) + "s"
}

// Parent returns the parent kind. Menus have none.
func (k Kind) Parent() (Kind, bool) {
	switch k {
	case KindCategory:
		return KindMenu, true
	case KindDish:
		return KindCategory, true
	}
	return "", false
}

// ParentKey returns the attribute holding the parent id, or "" for root kinds.
func (k Kind) ParentKey() string {
	switch k {
	case KindCategory:
		return "menuId"
	case KindDish:
		return "categoryId"
	}
	return ""
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMenu, KindCategory, KindDish:
		return true
	}
	return false
}

// Fields is an insertion-ordered bag of opaque JSON attributes.
// The zero value is empty and ready to use.
type Fields struct {
	m *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewFields returns an empty bag.
func NewFields() *Fields {
	return &Fields{m: orderedmap.New[string, json.RawMessage]()}
}

// ParseFields decodes a JSON object, keeping key order.
func ParseFields(data []byte) (*Fields, error) {
	f := NewFields()
	if err := f.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fields) init() {
	if f.m == nil {
		f.m = orderedmap.New[string, json.RawMessage]()
	}
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	if f == nil || f.m == nil {
		return 0
	}
	return f.m.Len()
}

// Get returns the raw JSON value of a field.
func (f *Fields) Get(key string) (json.RawMessage, bool) {
	if f == nil || f.m == nil {
		return nil, false
	}
	return f.m.Get(key)
}

// Set stores a raw JSON value. An existing key keeps its position.
func (f *Fields) Set(key string, value json.RawMessage) {
	f.init()
	f.m.Set(key, value)
}

// SetValue marshals v and stores it under key.
func (f *Fields) SetValue(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal field %q: %w", key, err)
	}
	f.Set(key, raw)
	return nil
}

// Delete removes a field and reports whether it was present.
func (f *Fields) Delete(key string) bool {
	if f == nil || f.m == nil {
		return false
	}
	_, ok := f.m.Delete(key)
	return ok
}

// Keys returns the field names in order.
func (f *Fields) Keys() []string {
	if f == nil || f.m == nil {
		return nil
	}
	keys := make([]string, 0, f.m.Len())
	for pair := f.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each calls fn for every field in order.
func (f *Fields) Each(fn func(key string, value json.RawMessage)) {
	if f == nil || f.m == nil {
		return
	}
	for pair := f.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns an independent copy.
func (f *Fields) Clone() *Fields {
	out := NewFields()
	f.Each(func(k string, v json.RawMessage) {
		out.m.Set(k, append(json.RawMessage(nil), v...))
	})
	return out
}

// MarshalJSON encodes the bag as a JSON object in field order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	if f == nil || f.m == nil {
		return []byte("{}"), nil
	}
	return f.m.MarshalJSON()
}

// UnmarshalJSON replaces the bag with the fields of a JSON object.
func (f *Fields) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidField)
	}
	// The ordered map decoder stops after the first value; anything after it
	// would be dropped silently.
	if !json.Valid(trimmed) {
		return fmt.Errorf("%w: malformed JSON object", ErrInvalidField)
	}
	m := orderedmap.New[string, json.RawMessage]()
	if err := m.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	f.m = m
	return nil
}

// Record is a stored Menu, Category or Dish.
type Record struct {
	Kind Kind

	// ID is assigned on creation and never changes.
	ID string

	// ParentID is the value of the kind's parent key (menuId for categories,
	// categoryId for dishes). Empty for menus.
	ParentID string

	// Fields holds every other attribute, opaque to the store.
	Fields *Fields

	// parentKey names ParentID in the JSON form. Set by the Store from its
	// registry; empty falls back to Kind.ParentKey.
	parentKey string
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	return &Record{
		Kind:      r.Kind,
		ID:        r.ID,
		ParentID:  r.ParentID,
		Fields:    r.Fields.Clone(),
		parentKey: r.parentKey,
	}
}

// Document returns the record's public JSON shape as an ordered bag:
// id first, then the parent key, then the remaining fields.
func (r *Record) Document() (*Fields, error) {
	doc := NewFields()
	if err := doc.SetValue(IDField, r.ID); err != nil {
		return nil, err
	}
	if key := r.ParentKey(); key != "" && r.ParentID != "" {
		if err := doc.SetValue(key, r.ParentID); err != nil {
			return nil, err
		}
	}
	r.Fields.Each(func(k string, v json.RawMessage) {
		doc.Set(k, v)
	})
	return doc, nil
}

// ParentKey returns the attribute name under which ParentID is exposed.
func (r *Record) ParentKey() string {
	if r.parentKey != "" {
		return r.parentKey
	}
	return r.Kind.ParentKey()
}

// MarshalJSON encodes the record in its public JSON shape.
func (r *Record) MarshalJSON() ([]byte, error) {
	doc, err := r.Document()
	if err != nil {
		return nil, err
	}
	return doc.MarshalJSON()
}

// stringField decodes a structural field that must be a JSON string.
// A missing field or JSON null yields "".
func stringField(f *Fields, key string) (string, error) {
	raw, ok := f.Get(key)
	if !ok {
		return "", nil
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidField, key)
	}
	return s, nil
}
