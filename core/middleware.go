// Package core provides the fundamental building blocks of mongomoron.
// This file defines the middleware system, which lets cross-cutting concerns
// such as logging wrap every operation a Connection sends to its backend.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Operation names the backend operation a Call performs.
type Operation string

const (
	OperationFindOne          Operation = "find_one"
	OperationFind             Operation = "find"
	OperationInsertOne        Operation = "insert_one"
	OperationInsertMany       Operation = "insert_many"
	OperationUpdateOne        Operation = "update_one"
	OperationUpdateMany       Operation = "update_many"
	OperationDeleteMany       Operation = "delete_many"
	OperationAggregate        Operation = "aggregate"
	OperationCount            Operation = "count_documents"
	OperationCreateCollection Operation = "create_collection"
	OperationDropCollection   Operation = "drop"
	OperationListCollections  Operation = "list_collection_names"
	OperationCreateIndex      Operation = "create_index"
)

// Call describes one operation on its way to the backend.
type Call struct {
	Operation  Operation
	Collection string
	// Args holds the compiled arguments (filter, documents, pipeline ...).
	Args []any
}

// Handler executes a Call.
type Handler func(ctx context.Context, call *Call) error

// Middleware wraps a Handler with additional logic.
type Middleware func(next Handler) Handler

// Use appends middlewares to the connection chain. The first registered
// middleware is the outermost one.
func (c *Connection) Use(middlewareList ...Middleware) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.middlewareList = append(c.middlewareList, middlewareList...)
}

// dispatch runs exec through the middleware chain.
func (c *Connection) dispatch(ctx context.Context, call *Call, exec func(ctx context.Context) error) error {
	c.mutex.RLock()
	h := Handler(func(ctx context.Context, _ *Call) error { return exec(ctx) })
	for i := len(c.middlewareList) - 1; i >= 0; i-- {
		h = c.middlewareList[i](h)
	}
	c.mutex.RUnlock()
	return h(ctx, call)
}

// maxLoggedArgLength bounds the rendering of a single argument in logs.
const maxLoggedArgLength = 512

// LoggingMiddleware logs every call at debug level, one line per call, in the
// shell-like form "db.<collection>.<operation>" with a bounded view of its
// arguments. Failures are logged at debug level too; callers own error
// reporting.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call *Call) error {
			if !logger.Core().Enabled(zap.DebugLevel) {
				return next(ctx, call)
			}
			start := time.Now()
			err := next(ctx, call)
			fields := []zap.Field{
				zap.String("collection", call.Collection),
				zap.Strings("args", summarizeArgs(call)),
				zap.Duration("took", time.Since(start)),
				zap.Bool("transaction", SessionFrom(ctx) != nil),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Debug(fmt.Sprintf("db.%s.%s", call.Collection, call.Operation), fields...)
			return err
		}
	}
}

// summarizeArgs renders call arguments for logging. Document sequences are
// reduced to their first element and a count.
func summarizeArgs(call *Call) []string {
	summary := make([]string, 0, len(call.Args))
	for _, arg := range call.Args {
		if list, ok := arg.([]any); ok && len(list) > 1 {
			summary = append(summary, fmt.Sprintf("[%s, ... (%d documents)]", renderArg(list[0]), len(list)))
			continue
		}
		summary = append(summary, renderArg(arg))
	}
	return summary
}

func renderArg(arg any) string {
	var text string
	// Wrapping lets arrays and scalars go through the Extended JSON encoder.
	if raw, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: arg}}, false, false); err == nil {
		text = strings.TrimSuffix(strings.TrimPrefix(string(raw), `{"v":`), "}")
	} else {
		text = fmt.Sprintf("%v", arg)
	}
	if len(text) <= maxLoggedArgLength {
		return text
	}
	cut := maxLoggedArgLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
