// Package core provides the fundamental building blocks of mongomoron.
// This file defines the insert builder.
package core

// InsertBuilder accumulates documents to insert.
//
// Whether the insert is a single-document or a bulk insert follows from the
// number of documents: exactly one issues insertOne, more issue insertMany.
type InsertBuilder struct {
	collection   Collection
	documentList []any
}

// InsertSpec is the compiled form of an InsertBuilder.
type InsertSpec struct {
	Collection string
	Documents  []any
	One        bool
}

// Insert starts an insert into collection with the given documents.
//
// Example:
//
//	core.Insert(users, bson.D{{Key: "name", Value: "ada"}})
func Insert(collection Collection, documents ...any) *InsertBuilder {
	return &InsertBuilder{collection: collection, documentList: append([]any(nil), documents...)}
}

func (b *InsertBuilder) builder() {}

// Kind implements Builder.
func (b *InsertBuilder) Kind() Kind { return KindInsert }

// Collection implements Builder.
func (b *InsertBuilder) Collection() Collection { return b.collection }

// Add appends documents.
func (b *InsertBuilder) Add(documents ...any) *InsertBuilder {
	b.documentList = append(b.documentList, documents...)
	return b
}

// Len returns the number of accumulated documents.
func (b *InsertBuilder) Len() int { return len(b.documentList) }

// Build compiles the insert. It fails with ErrEmptyInsert when no document
// was added.
func (b *InsertBuilder) Build() (*InsertSpec, error) {
	if len(b.documentList) == 0 {
		return nil, compilationError(KindInsert, b.collection.Name(), ErrEmptyInsert)
	}
	return &InsertSpec{
		Collection: b.collection.Name(),
		Documents:  append([]any(nil), b.documentList...),
		One:        len(b.documentList) == 1,
	}, nil
}
