// Package core provides the fundamental building blocks of mongomoron.
// This file defines the update builder and the update operator document it
// compiles to.
package core

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// UpdateBuilder accumulates an update operation.
//
// UpdateOne changes the first matching document, UpdateMany every matching
// document. Values are stored as given: a Literal is unwrapped and any other
// Expression is rejected by Build, since update operators do not evaluate
// expressions. Update operators are grouped per operator in first-use order:
//
//	core.UpdateMany(users).
//		Filter(users.Field("active").Eq(false)).
//		Set("status", "archived").
//		Inc("version", 1)
//	// {$set: {status: "archived"}, $inc: {version: 1}}
type UpdateBuilder struct {
	collection Collection
	filterList []Expression
	changeList []change
	upsert     bool
	one        bool
}

type change struct {
	op    Operator
	field string
	value any
}

// UpdateSpec is the compiled form of an UpdateBuilder.
type UpdateSpec struct {
	Collection string
	Filter     bson.D
	Update     bson.D
	Upsert     bool
	One        bool
}

// UpdateOne starts an update of the first matching document.
func UpdateOne(collection Collection) *UpdateBuilder {
	return &UpdateBuilder{collection: collection, one: true}
}

// UpdateMany starts an update of every matching document.
func UpdateMany(collection Collection) *UpdateBuilder {
	return &UpdateBuilder{collection: collection}
}

func (b *UpdateBuilder) builder() {}

// Kind implements Builder.
func (b *UpdateBuilder) Kind() Kind { return KindUpdate }

// Collection implements Builder.
func (b *UpdateBuilder) Collection() Collection { return b.collection }

// One reports whether only the first match is updated.
func (b *UpdateBuilder) One() bool { return b.one }

// Filter adds predicates selecting the documents to update.
func (b *UpdateBuilder) Filter(exprs ...Expression) *UpdateBuilder {
	b.filterList = append(b.filterList, exprs...)
	return b
}

// Upsert controls whether a document is inserted when nothing matches.
func (b *UpdateBuilder) Upsert(upsert bool) *UpdateBuilder {
	b.upsert = upsert
	return b
}

func (b *UpdateBuilder) add(op Operator, field string, value any) *UpdateBuilder {
	b.changeList = append(b.changeList, change{op: op, field: field, value: value})
	return b
}

// Set assigns value to field.
func (b *UpdateBuilder) Set(field string, value any) *UpdateBuilder {
	return b.add(OpSet, field, value)
}

// Unset removes fields.
func (b *UpdateBuilder) Unset(fields ...string) *UpdateBuilder {
	for _, field := range fields {
		b.add(OpUnset, field, "")
	}
	return b
}

// Inc increments field by amount.
func (b *UpdateBuilder) Inc(field string, amount any) *UpdateBuilder {
	return b.add(OpInc, field, amount)
}

// Mul multiplies field by factor.
func (b *UpdateBuilder) Mul(field string, factor any) *UpdateBuilder {
	return b.add(OpMul, field, factor)
}

// Min sets field to value when value is lower than the current one.
func (b *UpdateBuilder) Min(field string, value any) *UpdateBuilder {
	return b.add(OpMin, field, value)
}

// Max sets field to value when value is greater than the current one.
func (b *UpdateBuilder) Max(field string, value any) *UpdateBuilder {
	return b.add(OpMax, field, value)
}

// Rename renames field to newName.
func (b *UpdateBuilder) Rename(field, newName string) *UpdateBuilder {
	return b.add(OpRename, field, newName)
}

// Push appends value to the array field.
func (b *UpdateBuilder) Push(field string, value any) *UpdateBuilder {
	return b.add(OpPush, field, value)
}

// AddToSet appends value to the array field unless already present.
func (b *UpdateBuilder) AddToSet(field string, value any) *UpdateBuilder {
	return b.add(OpAddToSet, field, value)
}

// Pull removes matching values from the array field.
func (b *UpdateBuilder) Pull(field string, value any) *UpdateBuilder {
	return b.add(OpPull, field, value)
}

// SetOnInsert assigns value to field only when the update inserts.
func (b *UpdateBuilder) SetOnInsert(field string, value any) *UpdateBuilder {
	return b.add(OpSetOnInsert, field, value)
}

// CurrentDate sets field to the current date.
func (b *UpdateBuilder) CurrentDate(field string) *UpdateBuilder {
	return b.add(OpCurrentDate, field, true)
}

// Build compiles the update. It fails with ErrEmptyUpdate when no operator
// was added.
func (b *UpdateBuilder) Build() (*UpdateSpec, error) {
	name := b.collection.Name()
	if len(b.changeList) == 0 {
		return nil, compilationError(KindUpdate, name, ErrEmptyUpdate)
	}
	filter, err := compileFilterList(b.filterList)
	if err != nil {
		return nil, compilationError(KindUpdate, name, err)
	}
	update, err := b.updateDocument()
	if err != nil {
		return nil, compilationError(KindUpdate, name, err)
	}
	return &UpdateSpec{
		Collection: name,
		Filter:     filter,
		Update:     update,
		Upsert:     b.upsert,
		One:        b.one,
	}, nil
}

func (b *UpdateBuilder) updateDocument() (bson.D, error) {
	update := bson.D{}
	index := map[Operator]int{}
	for _, c := range b.changeList {
		value := c.value
		switch v := value.(type) {
		case Literal:
			value = v.Value
		case Expression:
			return nil, errors.Wrapf(ErrUnsupportedExpression, "%s value of %q is an expression (%T)", c.op, c.field, v)
		}
		i, ok := index[c.op]
		if !ok {
			i = len(update)
			index[c.op] = i
			update = append(update, bson.E{Key: string(c.op), Value: bson.D{}})
		}
		fields := update[i].Value.(bson.D)
		update[i].Value = append(fields, bson.E{Key: c.field, Value: value})
	}
	return update, nil
}
