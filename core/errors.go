// Package core provides the fundamental building blocks of mongomoron.
// This file defines the error taxonomy shared by the compiler, the dispatcher
// and the transaction scope.
package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedExpression is returned when an expression variant has no
	// compilation rule.
	ErrUnsupportedExpression = errors.New("unsupported expression")
	// ErrEmptyInsert is returned when an insert builder holds no documents.
	ErrEmptyInsert = errors.New("insert requires at least one document")
	// ErrUnsupportedOperation is returned when a builder is asked for a
	// combination the target operation cannot express, such as sorting a
	// single-document fetch.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrEmptyUpdate is returned when an update builder holds no update operators.
	ErrEmptyUpdate = errors.New("update requires at least one operator")
	// ErrEmptyIndex is returned when an index builder holds no keys.
	ErrEmptyIndex = errors.New("index requires at least one key")

	// ErrUnsupportedBuilder is returned by the dispatcher for a builder kind it
	// does not know. It signals a missing case, not a runtime condition.
	ErrUnsupportedBuilder = errors.New("unsupported builder")

	// ErrNestedTransaction is returned when a transaction scope is entered
	// with a context that already carries an active transaction.
	ErrNestedTransaction = errors.New("nested transactions are not supported")
	// ErrTransactionDone is returned when Commit or Abort is called on a
	// transaction that already finished.
	ErrTransactionDone = errors.New("transaction already finished")

	// ErrCollectionNotFound is returned when the backend reports that a
	// collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrNoBackend is returned by NewConnection when no backend is given.
	ErrNoBackend = errors.New("connection requires a backend")
)

// CompilationError reports misuse of the builder or expression API.
//
// It is raised before anything reaches the backend and is never retried.
// The sentinel that caused it (ErrEmptyInsert, ErrUnsupportedOperation, ...)
// can be matched with errors.Is.
type CompilationError struct {
	Builder    Kind
	Collection string
	cause      error
}

func (e *CompilationError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("compile %s: %v", e.Builder, e.cause)
	}
	return fmt.Sprintf("compile %s on %q: %v", e.Builder, e.Collection, e.cause)
}

func (e *CompilationError) Unwrap() error { return e.cause }

func compilationError(kind Kind, collection string, cause error) error {
	return &CompilationError{Builder: kind, Collection: collection, cause: cause}
}

// IsCompilationError reports whether err was raised while compiling a builder.
func IsCompilationError(err error) bool {
	var ce *CompilationError
	return errors.As(err, &ce)
}
