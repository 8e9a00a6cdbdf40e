// Package core provides the fundamental building blocks of mongomoron.
// This file defines the Collection handle.
package core

// Collection names a MongoDB collection.
//
// It is an immutable value: two collections with the same name are
// interchangeable. Besides qualifying builders it acts as a factory for
// field expressions.
//
// Example:
//
//	users := core.NewCollection("users")
//	q := core.Query(users).Filter(users.Field("age").Gte(18))
type Collection struct {
	name string
}

// NewCollection returns a handle for the collection called name.
func NewCollection(name string) Collection {
	return Collection{name: name}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// String implements fmt.Stringer.
func (c Collection) String() string { return c.name }

// Field returns a field expression for name.
func (c Collection) Field(name string) Field { return Field{Name: name} }
