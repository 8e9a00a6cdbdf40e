// Package core provides the fundamental building blocks of mongomoron.
// This file defines the fluent query builder used to fetch one or many
// documents.
package core

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// QueryBuilder accumulates a find operation.
//
// Query returns a builder that fetches many documents through a cursor,
// QueryOne one that fetches at most one document. Sorting, limit and skip only
// apply to the many form.
//
// Example:
//
//	users := core.NewCollection("users")
//	q := core.Query(users).
//		Filter(users.Field("age").Gte(18)).
//		Asc("name").
//		Limit(10)
type QueryBuilder struct {
	collection Collection
	filterList []Expression
	sortList   []SortKey
	projection bson.D
	limit      int64
	skip       int64
	one        bool
}

// QuerySpec is the compiled form of a QueryBuilder.
type QuerySpec struct {
	Collection string
	Filter     bson.D
	Sort       bson.D
	Projection bson.D
	Limit      int64
	Skip       int64
	One        bool
}

// Query starts a query returning every matching document.
func Query(collection Collection) *QueryBuilder {
	return &QueryBuilder{collection: collection}
}

// QueryOne starts a query returning the first matching document.
func QueryOne(collection Collection) *QueryBuilder {
	return &QueryBuilder{collection: collection, one: true}
}

func (q *QueryBuilder) builder() {}

// Kind implements Builder.
func (q *QueryBuilder) Kind() Kind { return KindQuery }

// Collection implements Builder.
func (q *QueryBuilder) Collection() Collection { return q.collection }

// One reports whether the query fetches a single document.
func (q *QueryBuilder) One() bool { return q.one }

// Filter adds predicates. Predicates from repeated calls are combined with $and.
func (q *QueryBuilder) Filter(exprs ...Expression) *QueryBuilder {
	q.filterList = append(q.filterList, exprs...)
	return q
}

// Sort appends a sort key.
func (q *QueryBuilder) Sort(field string, direction Direction) *QueryBuilder {
	q.sortList = append(q.sortList, SortKey{Field: field, Direction: direction})
	return q
}

// Asc appends an ascending sort key.
func (q *QueryBuilder) Asc(field string) *QueryBuilder { return q.Sort(field, Asc) }

// Desc appends a descending sort key.
func (q *QueryBuilder) Desc(field string) *QueryBuilder { return q.Sort(field, Desc) }

// Limit caps the number of returned documents.
func (q *QueryBuilder) Limit(limit int64) *QueryBuilder {
	q.limit = limit
	return q
}

// Skip sets the number of matching documents to skip.
func (q *QueryBuilder) Skip(skip int64) *QueryBuilder {
	q.skip = skip
	return q
}

// Project restricts returned documents to fields.
func (q *QueryBuilder) Project(fields ...string) *QueryBuilder {
	for _, field := range fields {
		q.projection = append(q.projection, bson.E{Key: field, Value: 1})
	}
	return q
}

// Exclude removes fields from returned documents.
func (q *QueryBuilder) Exclude(fields ...string) *QueryBuilder {
	for _, field := range fields {
		q.projection = append(q.projection, bson.E{Key: field, Value: 0})
	}
	return q
}

// Build compiles the query.
//
// It fails with ErrUnsupportedOperation when a single-document query carries
// a sort, limit or skip.
func (q *QueryBuilder) Build() (*QuerySpec, error) {
	name := q.collection.Name()
	if q.one {
		switch {
		case len(q.sortList) > 0:
			return nil, compilationError(KindQuery, name, errors.Wrap(ErrUnsupportedOperation, "sort on a single-document query"))
		case q.limit != 0 || q.skip != 0:
			return nil, compilationError(KindQuery, name, errors.Wrap(ErrUnsupportedOperation, "limit or skip on a single-document query"))
		}
	}
	if q.limit < 0 || q.skip < 0 {
		return nil, compilationError(KindQuery, name, errors.Wrap(ErrUnsupportedOperation, "negative limit or skip"))
	}

	filter, err := compileFilterList(q.filterList)
	if err != nil {
		return nil, compilationError(KindQuery, name, err)
	}
	sortDoc, err := sortDocument(KindQuery, name, q.sortList)
	if err != nil {
		return nil, err
	}

	spec := &QuerySpec{
		Collection: name,
		Filter:     filter,
		Sort:       sortDoc,
		Limit:      q.limit,
		Skip:       q.skip,
		One:        q.one,
	}
	if len(q.projection) > 0 {
		spec.Projection = append(bson.D(nil), q.projection...)
	}
	return spec, nil
}
