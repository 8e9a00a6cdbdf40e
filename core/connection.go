// Package core provides the fundamental building blocks of mongomoron.
// This file defines the Connection, the long-lived entry point that owns a
// backend, dispatches builders and manages collection lifecycle.
package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Connection dispatches compiled builders to a Backend.
//
// A Connection is created once and shared; it is safe for concurrent use.
// Transactions are not stored on the Connection but carried by the context
// passed to each call, so goroutines with distinct contexts never share a
// session.
type Connection struct {
	backend        Backend
	logger         *zap.Logger
	mutex          sync.RWMutex
	middlewareList []Middleware
	events         *eventDispatcher
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger used for dispatch and transaction diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMiddleware registers middlewares after the built-in logging middleware.
func WithMiddleware(middlewareList ...Middleware) Option {
	return func(c *Connection) {
		c.middlewareList = append(c.middlewareList, middlewareList...)
	}
}

// NewConnection wraps backend.
//
// Example:
//
//	backend, err := driver.NewBackend(ctx, "mongodb://localhost:27017", "app")
//	if err != nil {
//		return err
//	}
//	conn, err := core.NewConnection(backend, core.WithLogger(logger))
func NewConnection(backend Backend, opts ...Option) (*Connection, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	c := &Connection{backend: backend, logger: zap.NewNop(), events: newEventDispatcher()}
	for _, opt := range opts {
		opt(c)
	}
	c.middlewareList = append([]Middleware{LoggingMiddleware(c.logger)}, c.middlewareList...)
	return c, nil
}

// Backend returns the wrapped backend.
func (c *Connection) Backend() Backend { return c.backend }

// Logger returns the connection logger.
func (c *Connection) Logger() *zap.Logger { return c.logger }

// Ping checks that the database is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// Close releases the backend.
func (c *Connection) Close(ctx context.Context) error {
	return c.backend.Close(ctx)
}

// CreateCollection creates the collection called name and returns its handle.
//
// When override is true and the collection already exists it is dropped
// first, together with its documents and indexes.
func (c *Connection) CreateCollection(ctx context.Context, name string, override bool) (Collection, error) {
	if override {
		exists, err := c.CollectionExists(ctx, name)
		if err != nil {
			return Collection{}, err
		}
		if exists {
			if err := c.DropCollection(ctx, name); err != nil {
				return Collection{}, err
			}
		}
	}
	call := &Call{Operation: OperationCreateCollection, Collection: name}
	err := c.dispatch(ctx, call, func(ctx context.Context) error {
		return c.backend.CreateCollection(ctx, name)
	})
	if err != nil {
		return Collection{}, err
	}
	return NewCollection(name), nil
}

// DropCollection removes the collection called name.
//
// Dropping a collection that does not exist succeeds; ErrCollectionNotFound
// is only returned when the backend itself reports the absence as an error.
func (c *Connection) DropCollection(ctx context.Context, name string) error {
	call := &Call{Operation: OperationDropCollection, Collection: name}
	return c.dispatch(ctx, call, func(ctx context.Context) error {
		return c.backend.DropCollection(ctx, name)
	})
}

// ListCollections returns the names of the database's collections.
//
// The listing never joins the transaction carried by ctx: listCollections is
// not allowed inside a multi-document transaction.
func (c *Connection) ListCollections(ctx context.Context) ([]string, error) {
	if TransactionFrom(ctx) != nil {
		ctx = WithTransaction(ctx, nil)
	}
	var nameList []string
	call := &Call{Operation: OperationListCollections}
	err := c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		nameList, err = c.backend.ListCollectionNames(ctx)
		return err
	})
	return nameList, err
}

// CollectionExists reports whether the collection called name exists. It
// asks the server every time.
func (c *Connection) CollectionExists(ctx context.Context, name string) (bool, error) {
	nameList, err := c.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range nameList {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateIndex creates the index described by b and returns its name.
func (c *Connection) CreateIndex(ctx context.Context, b *IndexBuilder) (string, error) {
	spec, err := b.Build()
	if err != nil {
		return "", err
	}
	var indexName string
	call := &Call{Operation: OperationCreateIndex, Collection: spec.Collection, Args: []any{spec.Keys, spec.Unique}}
	err = c.dispatch(ctx, call, func(ctx context.Context) error {
		var err error
		indexName, err = c.backend.CreateIndex(ctx, spec.Collection, spec.Keys, spec.Unique, spec.Name)
		return err
	})
	return indexName, err
}
