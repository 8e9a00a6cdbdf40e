// Package core provides the fundamental building blocks of mongomoron.
// This file defines the contracts a database backend must satisfy: the
// collection operations the dispatcher issues, sessions and cursors.
package core

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// FindOptions carries the modifiers of a find operation.
type FindOptions struct {
	Sort       bson.D
	Projection bson.D
	Limit      int64
	Skip       int64
}

// UpdateResult reports the outcome of an update operation.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    any
}

// Cursor is a lazy, pull-based sequence of result documents.
//
// *mongo.Cursor satisfies it.
type Cursor interface {
	// Next advances the cursor, fetching more documents when needed.
	Next(ctx context.Context) bool
	// Decode decodes the current document into v.
	Decode(v any) error
	// All decodes every remaining document into results, which must be a
	// pointer to a slice, and closes the cursor.
	All(ctx context.Context, results any) error
	// Err returns the last error seen by the cursor.
	Err() error
	// Close releases the cursor.
	Close(ctx context.Context) error
}

// Session is a server-side unit of work able to host a transaction.
type Session interface {
	StartTransaction() error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	EndSession(ctx context.Context)
}

// Backend is the database capability the dispatcher drives.
//
// Every operation must join the transaction carried by ctx, if any; see
// SessionFrom. Errors are returned unchanged to callers of this package.
type Backend interface {
	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying client.
	Close(ctx context.Context) error

	// StartSession opens a new session.
	StartSession(ctx context.Context) (Session, error)

	// FindOne returns the first document matching filter, or nil when none does.
	FindOne(ctx context.Context, collection string, filter bson.D, options FindOptions) (bson.M, error)
	// Find returns a cursor over every document matching filter.
	Find(ctx context.Context, collection string, filter bson.D, options FindOptions) (Cursor, error)
	// InsertOne inserts document and returns its identifier.
	InsertOne(ctx context.Context, collection string, document any) (any, error)
	// InsertMany inserts documents and returns their identifiers in order.
	InsertMany(ctx context.Context, collection string, documents []any) ([]any, error)
	// UpdateOne applies update to the first document matching filter.
	UpdateOne(ctx context.Context, collection string, filter, update bson.D, upsert bool) (*UpdateResult, error)
	// UpdateMany applies update to every document matching filter.
	UpdateMany(ctx context.Context, collection string, filter, update bson.D, upsert bool) (*UpdateResult, error)
	// DeleteMany removes every document matching filter and returns how many.
	DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error)
	// Aggregate runs pipeline and returns a cursor over its output.
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) (Cursor, error)
	// CountDocuments counts the documents matching filter.
	CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error)

	// CreateCollection creates an empty collection.
	CreateCollection(ctx context.Context, name string) error
	// DropCollection removes a collection and its indexes.
	DropCollection(ctx context.Context, name string) error
	// ListCollectionNames lists the collections of the database.
	ListCollectionNames(ctx context.Context) ([]string, error)
	// CreateIndex creates an index and returns its name.
	CreateIndex(ctx context.Context, collection string, keys bson.D, unique bool, name string) (string, error)
}
