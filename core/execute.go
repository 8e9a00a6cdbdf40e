// Package core provides the fundamental building blocks of mongomoron.
// This file defines the execution dispatcher, which routes a builder to the
// backend operation matching its kind and mode.
package core

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Result holds the outcome of Execute. Which fields are set depends on Kind:
//
//	query, one     Document (nil when nothing matched)
//	query, many    Cursor
//	insert, one    InsertedID
//	insert, many   InsertedIDs
//	update         Update
//	delete         DeletedCount
//	aggregate      Cursor
//	count          Count
//	index          IndexName
type Result struct {
	Kind         Kind
	One          bool
	Document     bson.M
	Cursor       Cursor
	InsertedID   any
	InsertedIDs  []any
	Update       *UpdateResult
	DeletedCount int64
	Count        int64
	IndexName    string
}

// Execute compiles b and issues the matching backend operation with the
// transaction carried by ctx, if any.
//
// Compilation errors are returned before anything reaches the backend.
// Backend errors are returned unchanged. A builder this package does not
// know fails with ErrUnsupportedBuilder.
func (c *Connection) Execute(ctx context.Context, b Builder) (*Result, error) {
	switch x := b.(type) {
	case *QueryBuilder:
		if x.One() {
			doc, err := c.FindOne(ctx, x)
			if err != nil {
				return nil, err
			}
			return &Result{Kind: KindQuery, One: true, Document: doc}, nil
		}
		cursor, err := c.Find(ctx, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindQuery, Cursor: cursor}, nil
	case *InsertBuilder:
		idList, err := c.Insert(ctx, x)
		if err != nil {
			return nil, err
		}
		if len(idList) == 1 {
			return &Result{Kind: KindInsert, One: true, InsertedID: idList[0]}, nil
		}
		return &Result{Kind: KindInsert, InsertedIDs: idList}, nil
	case *UpdateBuilder:
		result, err := c.Update(ctx, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindUpdate, One: x.One(), Update: result}, nil
	case *DeleteBuilder:
		count, err := c.Delete(ctx, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindDelete, DeletedCount: count}, nil
	case *AggregationPipelineBuilder:
		cursor, err := c.Aggregate(ctx, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindAggregate, Cursor: cursor}, nil
	case *CountBuilder:
		count, err := c.Count(ctx, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindCount, Count: count}, nil
	case *IndexBuilder:
		name, err := c.CreateIndex(ctx, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindIndex, IndexName: name}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedBuilder, "%T", b)
	}
}

// FindOne runs a single-document query and returns the first match, or nil
// when nothing matched. q must come from QueryOne.
func (c *Connection) FindOne(ctx context.Context, q *QueryBuilder) (bson.M, error) {
	if !q.One() {
		return nil, compilationError(KindQuery, q.Collection().Name(), errors.Wrap(ErrUnsupportedOperation, "FindOne on a many-document query"))
	}
	spec, err := q.Build()
	if err != nil {
		return nil, err
	}
	var doc bson.M
	call := &Call{Operation: OperationFindOne, Collection: spec.Collection, Args: []any{spec.Filter}}
	err = c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		doc, err = c.backend.FindOne(ctx, spec.Collection, spec.Filter, FindOptions{Projection: spec.Projection})
		return err
	})
	return doc, err
}

// Find runs a many-document query and returns a cursor over the matches,
// sorted when the query has sort keys. q must come from Query.
func (c *Connection) Find(ctx context.Context, q *QueryBuilder) (Cursor, error) {
	if q.One() {
		return nil, compilationError(KindQuery, q.Collection().Name(), errors.Wrap(ErrUnsupportedOperation, "Find on a single-document query"))
	}
	spec, err := q.Build()
	if err != nil {
		return nil, err
	}
	options := FindOptions{Sort: spec.Sort, Projection: spec.Projection, Limit: spec.Limit, Skip: spec.Skip}
	var cursor Cursor
	call := &Call{Operation: OperationFind, Collection: spec.Collection, Args: []any{spec.Filter}}
	if spec.Sort != nil {
		call.Args = append(call.Args, spec.Sort)
	}
	err = c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		cursor, err = c.backend.Find(ctx, spec.Collection, spec.Filter, options)
		return err
	})
	return cursor, err
}

// Insert inserts the builder's documents and returns their identifiers. One
// document is sent with insertOne, several with insertMany.
func (c *Connection) Insert(ctx context.Context, b *InsertBuilder) ([]any, error) {
	spec, err := b.Build()
	if err != nil {
		return nil, err
	}
	var idList []any
	if spec.One {
		call := &Call{Operation: OperationInsertOne, Collection: spec.Collection, Args: []any{spec.Documents[0]}}
		err = c.dispatch(ctx, call, func(ctx context.Context) error {
			id, err := c.backend.InsertOne(ctx, spec.Collection, spec.Documents[0])
			idList = []any{id}
			return err
		})
	} else {
		call := &Call{Operation: OperationInsertMany, Collection: spec.Collection, Args: []any{spec.Documents}}
		err = c.dispatch(ctx, call, func(ctx context.Context) error {
			var err error
			idList, err = c.backend.InsertMany(ctx, spec.Collection, spec.Documents)
			return err
		})
	}
	if err != nil {
		return nil, err
	}
	return idList, nil
}

// Update applies the builder's update to the first or every matching
// document.
func (c *Connection) Update(ctx context.Context, b *UpdateBuilder) (*UpdateResult, error) {
	spec, err := b.Build()
	if err != nil {
		return nil, err
	}
	operation, updateFn := OperationUpdateMany, c.backend.UpdateMany
	if spec.One {
		operation, updateFn = OperationUpdateOne, c.backend.UpdateOne
	}
	var result *UpdateResult
	call := &Call{Operation: operation, Collection: spec.Collection, Args: []any{spec.Filter, spec.Update}}
	err = c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		result, err = updateFn(ctx, spec.Collection, spec.Filter, spec.Update, spec.Upsert)
		return err
	})
	return result, err
}

// Delete removes every document matching the builder's filter and returns
// how many were removed.
func (c *Connection) Delete(ctx context.Context, b *DeleteBuilder) (int64, error) {
	spec, err := b.Build()
	if err != nil {
		return 0, err
	}
	var count int64
	call := &Call{Operation: OperationDeleteMany, Collection: spec.Collection, Args: []any{spec.Filter}}
	err = c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		count, err = c.backend.DeleteMany(ctx, spec.Collection, spec.Filter)
		return err
	})
	return count, err
}

// Aggregate runs the builder's pipeline and returns a cursor over its output.
func (c *Connection) Aggregate(ctx context.Context, b *AggregationPipelineBuilder) (Cursor, error) {
	spec, err := b.Build()
	if err != nil {
		return nil, err
	}
	var cursor Cursor
	call := &Call{Operation: OperationAggregate, Collection: spec.Collection, Args: []any{spec.Pipeline}}
	err = c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		cursor, err = c.backend.Aggregate(ctx, spec.Collection, spec.Pipeline)
		return err
	})
	return cursor, err
}

// Count returns the number of documents matching the builder's filter.
func (c *Connection) Count(ctx context.Context, b *CountBuilder) (int64, error) {
	spec, err := b.Build()
	if err != nil {
		return 0, err
	}
	var count int64
	call := &Call{Operation: OperationCount, Collection: spec.Collection, Args: []any{spec.Filter}}
	err = c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		count, err = c.backend.CountDocuments(ctx, spec.Collection, spec.Filter)
		return err
	})
	return count, err
}
