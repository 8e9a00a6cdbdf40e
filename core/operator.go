// Package core provides the fundamental building blocks of mongomoron.
// This file defines the operator names used by expressions, filters,
// update documents and pipeline stages.
package core

// Operator is the name of a MongoDB operator, including its leading "$".
//
// Operators can be logical ($and, $or), comparison ($gt, $in), arithmetic,
// accumulators used by $group, or update operators ($set, $inc).
type Operator string

// Comparison operators.
const (
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
	OpIn  Operator = "$in"
	OpNin Operator = "$nin"
)

// Logical operators.
const (
	OpAnd Operator = "$and"
	OpOr  Operator = "$or"
	OpNot Operator = "$not"
	OpNor Operator = "$nor"
)

// Element and evaluation operators.
const (
	OpExists Operator = "$exists"
	OpRegex  Operator = "$regex"
	OpExpr   Operator = "$expr"
)

// Arithmetic, string and array expression operators.
const (
	OpAdd      Operator = "$add"
	OpSubtract Operator = "$subtract"
	OpMultiply Operator = "$multiply"
	OpDivide   Operator = "$divide"
	OpMod      Operator = "$mod"
	OpConcat   Operator = "$concat"
	OpSize     Operator = "$size"
	OpCond     Operator = "$cond"
	OpIfNull   Operator = "$ifNull"
)

// Accumulators, valid inside a $group stage.
const (
	OpSum      Operator = "$sum"
	OpAvg      Operator = "$avg"
	OpMin      Operator = "$min"
	OpMax      Operator = "$max"
	OpFirst    Operator = "$first"
	OpLast     Operator = "$last"
	OpPush     Operator = "$push"
	OpAddToSet Operator = "$addToSet"
)

// Update operators.
const (
	OpSet         Operator = "$set"
	OpUnset       Operator = "$unset"
	OpInc         Operator = "$inc"
	OpMul         Operator = "$mul"
	OpRename      Operator = "$rename"
	OpSetOnInsert Operator = "$setOnInsert"
	OpCurrentDate Operator = "$currentDate"
	OpPull        Operator = "$pull"
)

// Pipeline stages.
const (
	StageMatch     Operator = "$match"
	StageProject   Operator = "$project"
	StageGroup     Operator = "$group"
	StageSort      Operator = "$sort"
	StageLimit     Operator = "$limit"
	StageSkip      Operator = "$skip"
	StageUnwind    Operator = "$unwind"
	StageLookup    Operator = "$lookup"
	StageAddFields Operator = "$addFields"
	StageCount     Operator = "$count"
)

// comparison reports whether op compares a field against a value and can be
// written in query form ({field: {op: value}}).
func (op Operator) comparison() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpExists, OpRegex:
		return true
	}
	return false
}

// logical reports whether op combines whole filter documents.
func (op Operator) logical() bool {
	switch op {
	case OpAnd, OpOr, OpNor:
		return true
	}
	return false
}
