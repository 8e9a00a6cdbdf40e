// Package core provides the fundamental building blocks of mongomoron.
// This file defines the delete builder.
package core

import "go.mongodb.org/mongo-driver/bson"

// DeleteBuilder accumulates a delete operation. It always removes every
// document matching its filter.
type DeleteBuilder struct {
	collection Collection
	filterList []Expression
}

// DeleteSpec is the compiled form of a DeleteBuilder.
type DeleteSpec struct {
	Collection string
	Filter     bson.D
}

// Delete starts a delete of every document matching the filter.
func Delete(collection Collection) *DeleteBuilder {
	return &DeleteBuilder{collection: collection}
}

func (b *DeleteBuilder) builder() {}

// Kind implements Builder.
func (b *DeleteBuilder) Kind() Kind { return KindDelete }

// Collection implements Builder.
func (b *DeleteBuilder) Collection() Collection { return b.collection }

// Filter adds predicates selecting the documents to delete.
func (b *DeleteBuilder) Filter(exprs ...Expression) *DeleteBuilder {
	b.filterList = append(b.filterList, exprs...)
	return b
}

// Build compiles the delete.
func (b *DeleteBuilder) Build() (*DeleteSpec, error) {
	filter, err := compileFilterList(b.filterList)
	if err != nil {
		return nil, compilationError(KindDelete, b.collection.Name(), err)
	}
	return &DeleteSpec{Collection: b.collection.Name(), Filter: filter}, nil
}

// CountBuilder accumulates a count of matching documents.
type CountBuilder struct {
	collection Collection
	filterList []Expression
}

// CountSpec is the compiled form of a CountBuilder.
type CountSpec struct {
	Collection string
	Filter     bson.D
}

// Count starts a count of documents matching the filter.
func Count(collection Collection) *CountBuilder {
	return &CountBuilder{collection: collection}
}

func (b *CountBuilder) builder() {}

// Kind implements Builder.
func (b *CountBuilder) Kind() Kind { return KindCount }

// Collection implements Builder.
func (b *CountBuilder) Collection() Collection { return b.collection }

// Filter adds predicates selecting the documents to count.
func (b *CountBuilder) Filter(exprs ...Expression) *CountBuilder {
	b.filterList = append(b.filterList, exprs...)
	return b
}

// Build compiles the count.
func (b *CountBuilder) Build() (*CountSpec, error) {
	filter, err := compileFilterList(b.filterList)
	if err != nil {
		return nil, compilationError(KindCount, b.collection.Name(), err)
	}
	return &CountSpec{Collection: b.collection.Name(), Filter: filter}, nil
}
