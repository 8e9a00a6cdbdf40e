// Package core provides the fundamental building blocks of mongomoron.
// This file defines transaction management: the context-carried transaction
// handle, the explicit Begin/Commit/Abort triple and the scoped helpers that
// commit on success and abort on failure.
package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TxState is the lifecycle state of a Transaction.
type TxState int32

const (
	TxIdle TxState = iota
	TxActive
	TxCommitting
	TxAborting
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxActive:
		return "active"
	case TxCommitting:
		return "committing"
	case TxAborting:
		return "aborting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Transaction binds a backend session to a unit of work.
//
// A transaction is Active from Begin until Commit or Abort, after which it
// returns to Idle and its session is ended. Operations issued with a context
// carrying an Active transaction join it.
type Transaction struct {
	session Session
	logger  *zap.Logger
	events  *eventDispatcher
	state   atomic.Int32
}

// State returns the current lifecycle state.
func (t *Transaction) State() TxState { return TxState(t.state.Load()) }

// Session returns the underlying backend session.
func (t *Transaction) Session() Session { return t.session }

// Commit makes the transaction's changes permanent and ends the session.
func (t *Transaction) Commit(ctx context.Context) (err error) {
	if !t.state.CompareAndSwap(int32(TxActive), int32(TxCommitting)) {
		return errors.Wrapf(ErrTransactionDone, "commit in state %s", t.State())
	}
	defer func() { t.finish(ctx, EventCommit, err) }()
	t.logger.Debug("commit transaction")
	return t.session.CommitTransaction(ctx)
}

// Abort discards the transaction's changes and ends the session.
func (t *Transaction) Abort(ctx context.Context) (err error) {
	if !t.state.CompareAndSwap(int32(TxActive), int32(TxAborting)) {
		return errors.Wrapf(ErrTransactionDone, "abort in state %s", t.State())
	}
	defer func() { t.finish(ctx, EventAbort, err) }()
	t.logger.Debug("abort transaction")
	return t.session.AbortTransaction(ctx)
}

// finish ends the session, returns to Idle and then notifies handlers.
func (t *Transaction) finish(ctx context.Context, event Event, err error) {
	t.session.EndSession(ctx)
	t.state.Store(int32(TxIdle))
	t.events.emit(TransactionEvent{Event: event, Transaction: t, Err: err})
}

// transactionKey is the context key under which the active Transaction is
// stored. Using a private type prevents collisions with other packages.
type transactionKey struct{}

// WithTransaction returns a copy of ctx carrying tx.
func WithTransaction(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, transactionKey{}, tx)
}

// TransactionFrom returns the transaction carried by ctx, or nil.
func TransactionFrom(ctx context.Context) *Transaction {
	if tx, ok := ctx.Value(transactionKey{}).(*Transaction); ok {
		return tx
	}
	return nil
}

// SessionFrom returns the session of the Active transaction carried by ctx.
// It returns nil when there is none or when the transaction has finished, so
// a context that escapes its scope never reuses an ended session.
func SessionFrom(ctx context.Context) Session {
	tx := TransactionFrom(ctx)
	if tx == nil || tx.State() != TxActive {
		return nil
	}
	return tx.session
}

// Begin starts a session and a transaction on it. The returned context carries
// the transaction; pass it to every operation that must join it.
//
// Begin fails with ErrNestedTransaction when ctx already carries an Active
// transaction.
//
// Example:
//
//	tx, txCtx, err := conn.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	if _, err := conn.Execute(txCtx, core.Insert(users, doc)); err != nil {
//		_ = tx.Abort(ctx)
//		return err
//	}
//	return tx.Commit(ctx)
func (c *Connection) Begin(ctx context.Context) (*Transaction, context.Context, error) {
	if SessionFrom(ctx) != nil {
		return nil, ctx, ErrNestedTransaction
	}
	session, err := c.backend.StartSession(ctx)
	if err != nil {
		return nil, ctx, err
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, ctx, err
	}
	tx := &Transaction{session: session, logger: c.logger, events: c.events}
	tx.state.Store(int32(TxActive))
	c.logger.Debug("begin transaction")
	c.events.emit(TransactionEvent{Event: EventBegin, Transaction: tx})
	return tx, WithTransaction(ctx, tx), nil
}

// TransactionFunc is a unit of work run by Transactional. It must issue its
// operations with txCtx.
type TransactionFunc func(txCtx context.Context) error

// Transactional runs fn inside a transaction.
//
// When fn returns nil the transaction is committed and the commit error, if
// any, is returned. When fn returns an error or panics the transaction is
// aborted and the original error (or panic) is propagated unchanged; an abort
// failure is logged, not returned. The session is ended on every path.
//
// Example:
//
//	err := conn.Transactional(ctx, func(txCtx context.Context) error {
//		if _, err := conn.Execute(txCtx, core.Insert(orders, order)); err != nil {
//			return err
//		}
//		_, err := conn.Execute(txCtx, core.UpdateOne(stock).Filter(...).Inc("qty", -1))
//		return err
//	})
func (c *Connection) Transactional(ctx context.Context, fn TransactionFunc) error {
	_, err := InTransaction(ctx, c, func(txCtx context.Context) (struct{}, error) {
		return struct{}{}, fn(txCtx)
	})
	return err
}

// InTransaction is Transactional for units of work that produce a value.
func InTransaction[T any](ctx context.Context, c *Connection, fn func(txCtx context.Context) (T, error)) (T, error) {
	var zero T

	tx, txCtx, err := c.Begin(ctx)
	if err != nil {
		return zero, err
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		// fn panicked or called runtime.Goexit.
		r := recover()
		c.abort(ctx, tx, fmt.Errorf("unit of work did not return: %v", r))
		if r != nil {
			panic(r)
		}
	}()

	result, err := fn(txCtx)
	completed = true
	if err != nil {
		c.abort(ctx, tx, err)
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, err
	}
	return result, nil
}

// abort aborts tx on behalf of cause. It uses a context that survives the
// cancellation of ctx so a cancelled unit of work still releases its session.
func (c *Connection) abort(ctx context.Context, tx *Transaction, cause error) {
	if err := tx.Abort(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("abort transaction failed",
			zap.Error(err),
			zap.NamedError("cause", cause),
		)
	}
}
