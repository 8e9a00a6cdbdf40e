// Package core provides the fundamental building blocks of mongomoron.
// This file defines the index builder.
package core

import "go.mongodb.org/mongo-driver/bson"

// IndexBuilder accumulates the keys of an index.
//
// Example:
//
//	users := core.NewCollection("users")
//	core.Index(users).Asc("email").Unique(true)
type IndexBuilder struct {
	collection Collection
	keyList    []SortKey
	unique     bool
	name       string
}

// IndexSpec is the compiled form of an IndexBuilder.
type IndexSpec struct {
	Collection string
	Keys       bson.D
	Unique     bool
	Name       string
}

// Index starts an index on collection.
func Index(collection Collection) *IndexBuilder {
	return &IndexBuilder{collection: collection}
}

func (b *IndexBuilder) builder() {}

// Kind implements Builder.
func (b *IndexBuilder) Kind() Kind { return KindIndex }

// Collection implements Builder.
func (b *IndexBuilder) Collection() Collection { return b.collection }

// Key appends a key with the given direction.
func (b *IndexBuilder) Key(field string, direction Direction) *IndexBuilder {
	b.keyList = append(b.keyList, SortKey{Field: field, Direction: direction})
	return b
}

// Asc appends an ascending key.
func (b *IndexBuilder) Asc(field string) *IndexBuilder { return b.Key(field, Asc) }

// Desc appends a descending key.
func (b *IndexBuilder) Desc(field string) *IndexBuilder { return b.Key(field, Desc) }

// Unique marks the index as unique.
func (b *IndexBuilder) Unique(unique bool) *IndexBuilder {
	b.unique = unique
	return b
}

// Name sets an explicit index name. The server derives one when empty.
func (b *IndexBuilder) Name(name string) *IndexBuilder {
	b.name = name
	return b
}

// Build compiles the index. It fails with ErrEmptyIndex when no key was
// added and with ErrUnsupportedOperation on an invalid direction.
func (b *IndexBuilder) Build() (*IndexSpec, error) {
	name := b.collection.Name()
	if len(b.keyList) == 0 {
		return nil, compilationError(KindIndex, name, ErrEmptyIndex)
	}
	keys, err := sortDocument(KindIndex, name, b.keyList)
	if err != nil {
		return nil, err
	}
	return &IndexSpec{Collection: name, Keys: keys, Unique: b.unique, Name: b.name}, nil
}
