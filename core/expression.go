// Package core provides the fundamental building blocks of mongomoron.
// This file defines expressions, the nodes callers compose to describe field
// references, constants and operator applications, and the compiler that turns
// them into BSON values.
package core

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Expression is a node of the expression tree.
//
// The set of variants is closed: Field, Literal and OperatorExpr. Compiling
// an expression never has side effects and always yields the same value.
//
// https://www.mongodb.com/docs/manual/meta/aggregation-quick-reference/#expressions
type Expression interface {
	expression()
}

// Field references a document field by its dotted path.
//
// Example:
//
//	users := core.NewCollection("users")
//	adult := users.Field("age").Gte(18)
type Field struct {
	Name string
}

// Literal is a constant value, compiled as-is.
type Literal struct {
	Value any
}

// OperatorExpr applies an operator to a list of operand expressions.
type OperatorExpr struct {
	Op       Operator
	Operands []Expression
}

func (Field) expression()        {}
func (Literal) expression()      {}
func (OperatorExpr) expression() {}

// F is shorthand for Field{Name: name}.
func F(name string) Field { return Field{Name: name} }

// Lit is shorthand for Literal{Value: value}.
func Lit(value any) Literal { return Literal{Value: value} }

// Op builds an operator expression. Operands that are not expressions are
// wrapped in a Literal.
//
// Example:
//
//	core.Op(core.OpMultiply, core.F("price"), 1.2)
func Op(op Operator, operands ...any) OperatorExpr {
	list := make([]Expression, 0, len(operands))
	for _, operand := range operands {
		list = append(list, toExpression(operand))
	}
	return OperatorExpr{Op: op, Operands: list}
}

// toExpression returns v unchanged when it already is an expression and wraps
// it in a Literal otherwise.
func toExpression(v any) Expression {
	if e, ok := v.(Expression); ok {
		return e
	}
	return Literal{Value: v}
}

// Compile turns an expression into its aggregation-expression document value.
//
//   - Field compiles to "$" + name.
//   - Literal compiles to its value.
//   - OperatorExpr compiles to {op: operand} when it has exactly one operand
//     and to {op: [operands...]} otherwise.
//
// A nil or foreign expression fails with ErrUnsupportedExpression.
func Compile(e Expression) (any, error) {
	switch x := e.(type) {
	case Field:
		return "$" + x.Name, nil
	case Literal:
		return x.Value, nil
	case OperatorExpr:
		if len(x.Operands) == 1 {
			value, err := Compile(x.Operands[0])
			if err != nil {
				return nil, err
			}
			return bson.D{{Key: string(x.Op), Value: value}}, nil
		}
		operandList := make(bson.A, 0, len(x.Operands))
		for _, operand := range x.Operands {
			value, err := Compile(operand)
			if err != nil {
				return nil, err
			}
			operandList = append(operandList, value)
		}
		return bson.D{{Key: string(x.Op), Value: operandList}}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedExpression, "%T", e)
	}
}

// compileValue compiles v when it is an expression and returns it unchanged
// otherwise.
func compileValue(v any) (any, error) {
	if e, ok := v.(Expression); ok {
		return Compile(e)
	}
	return v, nil
}

//region Field helpers

// Path returns the field path prefixed with "$", as used inside pipeline
// stages such as $unwind.
func (f Field) Path() string { return "$" + f.Name }

// Eq matches documents where the field equals v.
func (f Field) Eq(v any) OperatorExpr { return Op(OpEq, f, v) }

// Ne matches documents where the field differs from v.
func (f Field) Ne(v any) OperatorExpr { return Op(OpNe, f, v) }

// Gt matches documents where the field is greater than v.
func (f Field) Gt(v any) OperatorExpr { return Op(OpGt, f, v) }

// Gte matches documents where the field is greater than or equal to v.
func (f Field) Gte(v any) OperatorExpr { return Op(OpGte, f, v) }

// Lt matches documents where the field is less than v.
func (f Field) Lt(v any) OperatorExpr { return Op(OpLt, f, v) }

// Lte matches documents where the field is less than or equal to v.
func (f Field) Lte(v any) OperatorExpr { return Op(OpLte, f, v) }

// In matches documents where the field equals any of values.
//
// With no values nothing matches.
func (f Field) In(values ...any) OperatorExpr { return Op(OpIn, f, append(bson.A{}, values...)) }

// Nin matches documents where the field equals none of values.
//
// With no values everything matches.
func (f Field) Nin(values ...any) OperatorExpr { return Op(OpNin, f, append(bson.A{}, values...)) }

// Exists matches documents that have (or lack) the field.
func (f Field) Exists(exists bool) OperatorExpr { return Op(OpExists, f, exists) }

// Regex matches documents where the field matches pattern.
func (f Field) Regex(pattern string) OperatorExpr { return Op(OpRegex, f, pattern) }

//endregion

//region Operator constructors

// And is satisfied when every expression is.
func And(exprs ...Expression) OperatorExpr { return OperatorExpr{Op: OpAnd, Operands: exprs} }

// Or is satisfied when at least one expression is.
func Or(exprs ...Expression) OperatorExpr { return OperatorExpr{Op: OpOr, Operands: exprs} }

// Nor is satisfied when no expression is.
func Nor(exprs ...Expression) OperatorExpr { return OperatorExpr{Op: OpNor, Operands: exprs} }

// Not negates expr.
func Not(expr Expression) OperatorExpr {
	return OperatorExpr{Op: OpNot, Operands: []Expression{expr}}
}

// Add sums numbers or adds a number of milliseconds to a date.
func Add(operands ...any) OperatorExpr { return Op(OpAdd, operands...) }

// Subtract subtracts b from a.
func Subtract(a, b any) OperatorExpr { return Op(OpSubtract, a, b) }

// Multiply multiplies its operands.
func Multiply(operands ...any) OperatorExpr { return Op(OpMultiply, operands...) }

// Divide divides a by b.
func Divide(a, b any) OperatorExpr { return Op(OpDivide, a, b) }

// Mod returns the remainder of a divided by b.
func Mod(a, b any) OperatorExpr { return Op(OpMod, a, b) }

// Concat concatenates strings.
func Concat(operands ...any) OperatorExpr { return Op(OpConcat, operands...) }

// Size returns the number of elements of an array.
func Size(array any) OperatorExpr { return Op(OpSize, array) }

// Cond evaluates to then when condition holds and to otherwise if not.
func Cond(condition, then, otherwise any) OperatorExpr {
	return Op(OpCond, condition, then, otherwise)
}

// IfNull evaluates to replacement when v is null or missing.
func IfNull(v, replacement any) OperatorExpr { return Op(OpIfNull, v, replacement) }

// Sum is the $sum accumulator.
func Sum(v any) OperatorExpr { return Op(OpSum, v) }

// Avg is the $avg accumulator.
func Avg(v any) OperatorExpr { return Op(OpAvg, v) }

// Min is the $min accumulator.
func Min(v any) OperatorExpr { return Op(OpMin, v) }

// Max is the $max accumulator.
func Max(v any) OperatorExpr { return Op(OpMax, v) }

// First is the $first accumulator.
func First(v any) OperatorExpr { return Op(OpFirst, v) }

// Last is the $last accumulator.
func Last(v any) OperatorExpr { return Op(OpLast, v) }

// Push is the $push accumulator.
func Push(v any) OperatorExpr { return Op(OpPush, v) }

// AddToSet is the $addToSet accumulator.
func AddToSet(v any) OperatorExpr { return Op(OpAddToSet, v) }

//endregion
