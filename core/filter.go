// Package core provides the fundamental building blocks of mongomoron.
// This file compiles expressions into query filter documents, the predicate
// form accepted by find, update, delete, count and $match.
package core

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CompileFilter turns a predicate expression into a filter document.
//
// Comparisons between a field and a constant use the query language form:
//
//	users.Field("age").Gte(18)        // {age: {$gte: 18}}
//	users.Field("name").Eq("bob")     // {name: "bob"}
//	core.Or(a, b)                     // {$or: [a, b]}
//
// Anything else, such as a comparison between two fields, is wrapped in
// $expr and compiled with Compile. A Literal holding a document is used as a
// raw filter; a nil expression matches every document.
func CompileFilter(e Expression) (bson.D, error) {
	switch x := e.(type) {
	case nil:
		return bson.D{}, nil
	case Literal:
		return rawDocument(x.Value)
	case OperatorExpr:
		return compileOperatorFilter(x)
	case Field:
		return nil, errors.Wrapf(ErrUnsupportedExpression, "field %q is not a predicate", x.Name)
	default:
		return nil, errors.Wrapf(ErrUnsupportedExpression, "%T", e)
	}
}

// compileFilterList combines several predicates with $and. A single
// predicate is compiled on its own and none yields an empty filter.
func compileFilterList(exprs []Expression) (bson.D, error) {
	switch len(exprs) {
	case 0:
		return bson.D{}, nil
	case 1:
		return CompileFilter(exprs[0])
	default:
		return CompileFilter(And(exprs...))
	}
}

func compileOperatorFilter(x OperatorExpr) (bson.D, error) {
	if x.Op.logical() {
		if len(x.Operands) == 0 {
			return nil, errors.Wrapf(ErrUnsupportedExpression, "%s needs at least one operand", x.Op)
		}
		childList := make(bson.A, 0, len(x.Operands))
		for _, operand := range x.Operands {
			child, err := CompileFilter(operand)
			if err != nil {
				return nil, err
			}
			childList = append(childList, child)
		}
		return bson.D{{Key: string(x.Op), Value: childList}}, nil
	}

	if x.Op == OpNot && len(x.Operands) == 1 {
		if inner, ok := x.Operands[0].(OperatorExpr); ok {
			if name, value, ok := fieldComparison(inner); ok {
				return bson.D{{Key: name, Value: bson.D{{Key: string(OpNot), Value: bson.D{{Key: string(inner.Op), Value: value}}}}}}, nil
			}
		}
		child, err := CompileFilter(x.Operands[0])
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: string(OpNor), Value: bson.A{child}}}, nil
	}

	if name, value, ok := fieldComparison(x); ok {
		if x.Op == OpEq && !operatorShaped(value) {
			return bson.D{{Key: name, Value: value}}, nil
		}
		return bson.D{{Key: name, Value: bson.D{{Key: string(x.Op), Value: value}}}}, nil
	}

	compiled, err := Compile(x)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: string(OpExpr), Value: compiled}}, nil
}

// fieldComparison reports whether x compares a field against a constant and
// returns the field name and the constant.
func fieldComparison(x OperatorExpr) (string, any, bool) {
	if !x.Op.comparison() || len(x.Operands) != 2 {
		return "", nil, false
	}
	field, ok := x.Operands[0].(Field)
	if !ok {
		return "", nil, false
	}
	literal, ok := x.Operands[1].(Literal)
	if !ok {
		return "", nil, false
	}
	return field.Name, literal.Value, true
}

// operatorShaped reports whether value would be read as a query operator or
// a pattern when used as {field: value}. Such equalities need an explicit $eq.
func operatorShaped(value any) bool {
	switch v := value.(type) {
	case primitive.Regex, *primitive.Regex:
		return true
	case bson.D:
		return len(v) > 0 && strings.HasPrefix(v[0].Key, "$")
	case bson.M:
		return hasOperatorKey(v)
	case map[string]any:
		return hasOperatorKey(v)
	default:
		return false
	}
}

func hasOperatorKey(m map[string]any) bool {
	for key := range m {
		if strings.HasPrefix(key, "$") {
			return true
		}
	}
	return false
}

// rawDocument converts a document-shaped value into bson.D. Map keys are
// sorted so the result does not depend on map iteration order.
func rawDocument(v any) (bson.D, error) {
	switch doc := v.(type) {
	case bson.D:
		return doc, nil
	case bson.M:
		return sortedDocument(doc), nil
	case map[string]any:
		return sortedDocument(doc), nil
	case nil:
		return bson.D{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedExpression, "literal of type %T is not a filter document", v)
	}
}

func sortedDocument(m map[string]any) bson.D {
	keyList := make([]string, 0, len(m))
	for key := range m {
		keyList = append(keyList, key)
	}
	sort.Strings(keyList)
	doc := make(bson.D, 0, len(keyList))
	for _, key := range keyList {
		doc = append(doc, bson.E{Key: key, Value: m[key]})
	}
	return doc
}
