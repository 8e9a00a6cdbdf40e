package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCompileFilter(t *testing.T) {
	users := NewCollection("users")
	age := users.Field("age")
	name := users.Field("name")

	tests := []struct {
		name string
		expr Expression
		want bson.D
	}{
		{"nil", nil, bson.D{}},
		{"equality", name.Eq("ada"), bson.D{{Key: "name", Value: "ada"}}},
		{"greater or equal", age.Gte(18), bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: 18}}}}},
		{"not equal", age.Ne(0), bson.D{{Key: "age", Value: bson.D{{Key: "$ne", Value: 0}}}}},
		{"in", age.In(1, 2), bson.D{{Key: "age", Value: bson.D{{Key: "$in", Value: bson.A{1, 2}}}}}},
		{"nin", age.Nin(3), bson.D{{Key: "age", Value: bson.D{{Key: "$nin", Value: bson.A{3}}}}}},
		{"exists", name.Exists(false), bson.D{{Key: "name", Value: bson.D{{Key: "$exists", Value: false}}}}},
		{"regex", name.Regex("^a"), bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^a"}}}}},
		{
			"and",
			And(age.Gt(18), name.Eq("ada")),
			bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 18}}}},
				bson.D{{Key: "name", Value: "ada"}},
			}}},
		},
		{
			"or of nor",
			Or(age.Lt(10), Nor(name.Eq("x"))),
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: 10}}}},
				bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "name", Value: "x"}}}}},
			}}},
		},
		{
			"not on field comparison",
			Not(age.Gt(5)),
			bson.D{{Key: "age", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$gt", Value: 5}}}}}},
		},
		{
			"not on compound",
			Not(Or(age.Eq(1), age.Eq(2))),
			bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "age", Value: 1}},
				bson.D{{Key: "age", Value: 2}},
			}}}}}},
		},
		{
			"field against field",
			Op(OpGt, F("spent"), F("budget")),
			bson.D{{Key: "$expr", Value: bson.D{{Key: "$gt", Value: bson.A{"$spent", "$budget"}}}}},
		},
		{"in with no values", age.In(), bson.D{{Key: "age", Value: bson.D{{Key: "$in", Value: bson.A{}}}}}},
		{"nin with no values", age.Nin(), bson.D{{Key: "age", Value: bson.D{{Key: "$nin", Value: bson.A{}}}}}},
		{
			"equality with operator-shaped document",
			F("a").Eq(bson.D{{Key: "$gt", Value: 1}}),
			bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		},
		{
			"equality with operator-shaped map",
			F("a").Eq(bson.M{"$in": bson.A{1}}),
			bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: bson.M{"$in": bson.A{1}}}}}},
		},
		{
			"equality with regex value",
			name.Eq(primitive.Regex{Pattern: "^a"}),
			bson.D{{Key: "name", Value: bson.D{{Key: "$eq", Value: primitive.Regex{Pattern: "^a"}}}}},
		},
		{
			"equality with plain embedded document",
			F("addr").Eq(bson.D{{Key: "city", Value: "Oslo"}}),
			bson.D{{Key: "addr", Value: bson.D{{Key: "city", Value: "Oslo"}}}},
		},
		{
			"raw bson.D literal",
			Lit(bson.D{{Key: "b", Value: 1}, {Key: "a", Value: 2}}),
			bson.D{{Key: "b", Value: 1}, {Key: "a", Value: 2}},
		},
		{
			"raw map literal is key sorted",
			Lit(bson.M{"b": 1, "a": 2}),
			bson.D{{Key: "a", Value: 2}, {Key: "b", Value: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompileFilter(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFilterUnsupported(t *testing.T) {
	tests := []struct {
		name string
		expr Expression
	}{
		{"bare field", F("age")},
		{"scalar literal", Lit(42)},
		{"foreign expression", foreignExpression{}},
		{"foreign operand", And(F("a").Eq(1), foreignExpression{})},
		{"empty and", And()},
		{"empty or", Or()},
		{"empty nor", Nor()},
		{"nested empty or", And(F("a").Eq(1), Or())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFilter(tt.expr)
			assert.ErrorIs(t, err, ErrUnsupportedExpression)
		})
	}
}

func TestCompileFilterList(t *testing.T) {
	got, err := compileFilterList(nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, got)

	got, err = compileFilterList([]Expression{F("a").Eq(1)})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "a", Value: 1}}, got)

	got, err = compileFilterList([]Expression{F("a").Eq(1), F("b").Eq(2)})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "a", Value: 1}},
		bson.D{{Key: "b", Value: 2}},
	}}}, got)
}
