package core

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTransactionalCommit(t *testing.T) {
	backend := newFakeBackend()
	conn := newTestConnection(t, backend)
	accounts := NewCollection("accounts")

	err := conn.Transactional(context.Background(), func(txCtx context.Context) error {
		if _, err := conn.Execute(txCtx, Insert(accounts, bson.M{"id": 1})); err != nil {
			return err
		}
		_, err := conn.Execute(txCtx, UpdateOne(accounts).Filter(accounts.Field("id").Eq(1)).Inc("balance", 10))
		return err
	})
	require.NoError(t, err)

	require.Len(t, backend.sessionList, 1)
	s := backend.sessionList[0]
	assert.Equal(t, 1, s.started)
	assert.Equal(t, 1, s.commits)
	assert.Equal(t, 0, s.aborts)
	assert.Equal(t, 1, s.ended)

	for _, call := range backend.calls() {
		assert.Same(t, s, call.session, "operation %s must join the transaction", call.operation)
	}
}

func TestTransactionalAbortReturnsOriginalError(t *testing.T) {
	backend := newFakeBackend()
	conn := newTestConnection(t, backend)
	boom := errors.New("boom")

	err := conn.Transactional(context.Background(), func(txCtx context.Context) error {
		_, _ = conn.Execute(txCtx, Insert(NewCollection("accounts"), bson.M{"id": 1}))
		return boom
	})
	assert.Same(t, boom, err)

	s := backend.sessionList[0]
	assert.Equal(t, 0, s.commits)
	assert.Equal(t, 1, s.aborts)
	assert.Equal(t, 1, s.ended)
}

func TestTransactionalAbortFailureIsLogged(t *testing.T) {
	backend := newFakeBackend()
	backend.abortErr = errors.New("abort failed")
	observed, logs := observer.New(zap.ErrorLevel)
	conn := newTestConnection(t, backend, WithLogger(zap.New(observed)))
	boom := errors.New("boom")

	err := conn.Transactional(context.Background(), func(context.Context) error { return boom })
	assert.Same(t, boom, err)

	entries := logs.FilterMessage("abort transaction failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abort failed", fields["error"])
	assert.Equal(t, "boom", fields["cause"])
	assert.Equal(t, 1, backend.sessionList[0].ended)
}

func TestTransactionalInsertThenFailingDelete(t *testing.T) {
	backend := newFakeBackend()
	backend.failOn = OperationDeleteMany
	backend.failErr = errors.New("E11000 duplicate key")
	conn := newTestConnection(t, backend)
	users := NewCollection("users")

	err := conn.Transactional(context.Background(), func(txCtx context.Context) error {
		if _, err := conn.Execute(txCtx, Insert(users, bson.M{"n": 1}, bson.M{"n": 2})); err != nil {
			return err
		}
		_, err := conn.Execute(txCtx, Delete(users).Filter(users.Field("n").Eq(1)))
		return err
	})
	assert.Same(t, backend.failErr, err)

	assert.Equal(t, []Operation{OperationInsertMany, OperationDeleteMany}, backend.operations())
	s := backend.sessionList[0]
	for _, call := range backend.calls() {
		assert.Same(t, s, call.session)
	}
	assert.Equal(t, 1, s.aborts)
	assert.Equal(t, 0, s.commits)
	assert.Equal(t, 1, s.ended)
}

func TestTransactionalPanicAbortsAndRepanics(t *testing.T) {
	backend := newFakeBackend()
	conn := newTestConnection(t, backend)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = conn.Transactional(context.Background(), func(context.Context) error {
			panic("kaboom")
		})
	})

	s := backend.sessionList[0]
	assert.Equal(t, 0, s.commits)
	assert.Equal(t, 1, s.aborts)
	assert.Equal(t, 1, s.ended)
}

func TestTransactionalCommitError(t *testing.T) {
	backend := newFakeBackend()
	backend.commitErr = errors.New("write conflict")
	conn := newTestConnection(t, backend)

	err := conn.Transactional(context.Background(), func(context.Context) error { return nil })
	assert.Same(t, backend.commitErr, err)

	s := backend.sessionList[0]
	assert.Equal(t, 1, s.commits)
	assert.Equal(t, 0, s.aborts)
	assert.Equal(t, 1, s.ended)
}

func TestTransactionalNested(t *testing.T) {
	backend := newFakeBackend()
	conn := newTestConnection(t, backend)

	var inner error
	err := conn.Transactional(context.Background(), func(txCtx context.Context) error {
		inner = conn.Transactional(txCtx, func(context.Context) error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrNestedTransaction)
	assert.Len(t, backend.sessionList, 1)
}

func TestTransactionalStartFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.startTxnErr = errors.New("no replica set")
	conn := newTestConnection(t, backend)

	called := false
	err := conn.Transactional(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.Same(t, backend.startTxnErr, err)
	assert.False(t, called)
	assert.Equal(t, 1, backend.sessionList[0].ended)
}

func TestInTransactionReturnsValue(t *testing.T) {
	backend := newFakeBackend()
	conn := newTestConnection(t, backend)

	id, err := InTransaction(context.Background(), conn, func(txCtx context.Context) (any, error) {
		result, err := conn.Execute(txCtx, Insert(NewCollection("accounts"), bson.M{"id": 1}))
		if err != nil {
			return nil, err
		}
		return result.InsertedID, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, 1, backend.sessionList[0].commits)
}

func TestBeginCommitAbort(t *testing.T) {
	backend := newFakeBackend()
	conn := newTestConnection(t, backend)
	ctx := context.Background()

	tx, txCtx, err := conn.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, TxActive, tx.State())
	assert.Same(t, tx, TransactionFrom(txCtx))
	assert.NotNil(t, SessionFrom(txCtx))
	assert.Nil(t, SessionFrom(ctx))

	_, _, err = conn.Begin(txCtx)
	assert.ErrorIs(t, err, ErrNestedTransaction)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, TxIdle, tx.State())
	assert.Nil(t, SessionFrom(txCtx), "a finished transaction must not be joined")

	assert.ErrorIs(t, tx.Commit(ctx), ErrTransactionDone)
	assert.ErrorIs(t, tx.Abort(ctx), ErrTransactionDone)

	s := backend.sessionList[0]
	assert.Equal(t, 1, s.commits)
	assert.Equal(t, 0, s.aborts)
	assert.Equal(t, 1, s.ended)

	// A context whose transaction finished may start a new one.
	tx2, _, err := conn.Begin(txCtx)
	require.NoError(t, err)
	require.NoError(t, tx2.Abort(ctx))
	assert.Equal(t, 1, backend.sessionList[1].aborts)
}

func TestConcurrentTransactionsDoNotShareSessions(t *testing.T) {
	backend := newFakeBackend()
	conn := newTestConnection(t, backend)
	users := NewCollection("users")

	done := make(chan Session, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_ = conn.Transactional(context.Background(), func(txCtx context.Context) error {
				_, err := conn.Execute(txCtx, Count(users))
				done <- SessionFrom(txCtx)
				return err
			})
		}()
	}
	first, second := <-done, <-done
	assert.NotSame(t, first, second)
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "idle", TxIdle.String())
	assert.Equal(t, "active", TxActive.String())
	assert.Equal(t, "committing", TxCommitting.String())
	assert.Equal(t, "aborting", TxAborting.String())
	assert.Equal(t, "state(9)", TxState(9).String())
}
