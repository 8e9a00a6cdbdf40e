// Package driver provides the MongoDB backend for mongomoron.
// This file defines mongoSession, which adapts a driver session to the
// core.Session interface used by the transaction scope.
package driver

import (
	"context"

	"github.com/leandroluk/mongomoron/core"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoSession wraps a MongoDB session and implements core.Session.
type mongoSession struct {
	session    mongo.Session
	txnOptions *options.TransactionOptions
}

var _ core.Session = (*mongoSession)(nil)

// StartTransaction starts a transaction with the backend's default
// transaction options.
func (s *mongoSession) StartTransaction() error {
	if s.txnOptions == nil {
		return s.session.StartTransaction()
	}
	return s.session.StartTransaction(s.txnOptions)
}

// CommitTransaction commits the active transaction.
func (s *mongoSession) CommitTransaction(ctx context.Context) error {
	return s.session.CommitTransaction(ctx)
}

// AbortTransaction aborts the active transaction.
//
// Any changes performed during the session are discarded.
func (s *mongoSession) AbortTransaction(ctx context.Context) error {
	return s.session.AbortTransaction(ctx)
}

// EndSession releases the session on the server.
func (s *mongoSession) EndSession(ctx context.Context) {
	s.session.EndSession(ctx)
}
