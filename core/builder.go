// Package core provides the fundamental building blocks of mongomoron.
// This file defines the Builder contract shared by every operation builder,
// together with the sort and assignment types several builders use.
package core

import (
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Kind discriminates builders for the dispatcher.
type Kind int

const (
	KindQuery Kind = iota + 1
	KindInsert
	KindUpdate
	KindDelete
	KindAggregate
	KindCount
	KindIndex
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindAggregate:
		return "aggregate"
	case KindCount:
		return "count"
	case KindIndex:
		return "index"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Builder is implemented by every operation builder in this package.
//
// Builders are mutable accumulators owned by a single goroutine. Their Build
// method compiles the accumulated state and may be called any number of times.
type Builder interface {
	// Kind identifies the operation the builder describes.
	Kind() Kind
	// Collection returns the target collection.
	Collection() Collection
	builder()
}

// Direction is a sort or index key direction.
type Direction int

const (
	// Asc sorts in ascending order.
	Asc Direction = 1
	// Desc sorts in descending order.
	Desc Direction = -1
)

func (d Direction) valid() bool { return d == Asc || d == Desc }

// SortKey is one (field, direction) pair of a sort specification.
type SortKey struct {
	Field     string
	Direction Direction
}

// sortDocument compiles keys into an ordered sort document.
func sortDocument(kind Kind, collection string, keys []SortKey) (bson.D, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	doc := make(bson.D, 0, len(keys))
	for _, key := range keys {
		if !key.Direction.valid() {
			return nil, compilationError(kind, collection,
				errors.Wrapf(ErrUnsupportedOperation, "invalid direction %d for %q", key.Direction, key.Field))
		}
		doc = append(doc, bson.E{Key: key.Field, Value: int32(key.Direction)})
	}
	return doc, nil
}

// Assign names the value of an output field in $project, $group or
// $addFields. Expression values are compiled; other values are used as-is.
type Assign struct {
	Name  string
	Value any
}

// As is shorthand for Assign{Name: name, Value: value}.
func As(name string, value any) Assign { return Assign{Name: name, Value: value} }

func assignDocument(assignList []Assign) (bson.D, error) {
	doc := make(bson.D, 0, len(assignList))
	for _, assign := range assignList {
		value, err := compileValue(assign.Value)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: assign.Name, Value: value})
	}
	return doc, nil
}
