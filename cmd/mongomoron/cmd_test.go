package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/leandroluk/mongomoron/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zapcore"
)

func TestParseKeys(t *testing.T) {
	keyList, err := parseKeys([]string{"name", "age:desc", "created:ASC", "score:-1"})
	require.NoError(t, err)
	assert.Equal(t, []core.SortKey{
		{Field: "name", Direction: core.Asc},
		{Field: "age", Direction: core.Desc},
		{Field: "created", Direction: core.Asc},
		{Field: "score", Direction: core.Desc},
	}, keyList)

	_, err = parseKeys([]string{"age:sideways"})
	assert.Error(t, err)
	_, err = parseKeys([]string{":asc"})
	assert.Error(t, err)
}

func TestParseDocument(t *testing.T) {
	doc, err := parseDocument(`{"age": {"$gte": 18}, "name": "ada"}`)
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "age", Value: bson.D{{Key: "$gte", Value: int32(18)}}},
		{Key: "name", Value: "ada"},
	}, doc)

	empty, err := parseDocument("  ")
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, empty)

	_, err = parseDocument(`{"age":`)
	assert.Error(t, err)
}

func TestParsePipeline(t *testing.T) {
	stageList, err := parsePipeline(`[{"$match": {"paid": true}}, {"$count": "n"}]`)
	require.NoError(t, err)
	assert.Equal(t, []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "paid", Value: true}}}},
		{{Key: "$count", Value: "n"}},
	}, stageList)

	_, err = parsePipeline(`[]`)
	assert.Error(t, err)
	_, err = parsePipeline(`{"$match": {}}`)
	assert.Error(t, err)
}

func TestQueryBuilder(t *testing.T) {
	q, err := queryBuilder("users", `{"age": {"$gte": 18}}`, []string{"name:desc"}, []string{"name"}, 5, 2, false)
	require.NoError(t, err)
	spec, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, "users", spec.Collection)
	assert.Equal(t, bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: int32(18)}}}}, spec.Filter)
	assert.Equal(t, bson.D{{Key: "name", Value: int32(-1)}}, spec.Sort)
	assert.Equal(t, int64(5), spec.Limit)
	assert.Equal(t, int64(2), spec.Skip)

	one, err := queryBuilder("users", "", nil, nil, 0, 0, true)
	require.NoError(t, err)
	assert.True(t, one.One())

	sortedOne, err := queryBuilder("users", "", []string{"name"}, nil, 0, 0, true)
	require.NoError(t, err)
	_, err = sortedOne.Build()
	assert.ErrorIs(t, err, core.ErrUnsupportedOperation)
}

func TestIndexBuilder(t *testing.T) {
	b, err := indexBuilder("users", []string{"email", "created:desc"}, true, "by_email")
	require.NoError(t, err)
	spec, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "email", Value: int32(1)}, {Key: "created", Value: int32(-1)}}, spec.Keys)
	assert.True(t, spec.Unique)
	assert.Equal(t, "by_email", spec.Name)
}

func TestPipelineBuilder(t *testing.T) {
	b, err := pipelineBuilder("orders", `[{"$limit": 1}]`)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, core.NewCollection("orders"), b.Collection())
}

type sliceCursor struct {
	docList []bson.D
	pos     int
	closed  bool
}

func (c *sliceCursor) Next(context.Context) bool {
	c.pos++
	return c.pos <= len(c.docList)
}

func (c *sliceCursor) Decode(v any) error {
	raw, err := bson.Marshal(c.docList[c.pos-1])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

func (c *sliceCursor) All(context.Context, any) error { return nil }
func (c *sliceCursor) Err() error                     { return nil }
func (c *sliceCursor) Close(context.Context) error    { c.closed = true; return nil }

func TestWriteCursor(t *testing.T) {
	cursor := &sliceCursor{docList: []bson.D{
		{{Key: "name", Value: "ada"}},
		{{Key: "name", Value: "bob"}, {Key: "age", Value: int32(17)}},
	}}
	var out bytes.Buffer
	require.NoError(t, writeCursor(context.Background(), &out, cursor))
	assert.Equal(t, "{\"name\":\"ada\"}\n{\"name\":\"bob\",\"age\":17}\n", out.String())
	assert.True(t, cursor.closed)
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"ping"},
		{"collections", "list"},
		{"collections", "create"},
		{"collections", "drop"},
		{"collections", "exists"},
		{"index", "create"},
		{"find"},
		{"aggregate"},
		{"count"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestCommandArgsValidated(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"find"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestNewLoggerWithOutput(t *testing.T) {
	var out bytes.Buffer
	log := newLoggerWithOutput(true, zapcore.InfoLevel, zapcore.AddSync(&out))
	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"shown"`)
	assert.Contains(t, out.String(), `"level":"info"`)
}
