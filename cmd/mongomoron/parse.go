package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/leandroluk/mongomoron/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// parseKeys parses "field", "field:asc" or "field:desc" arguments.
func parseKeys(argList []string) ([]core.SortKey, error) {
	keyList := make([]core.SortKey, 0, len(argList))
	for _, arg := range argList {
		field, dir, _ := strings.Cut(arg, ":")
		if field == "" {
			return nil, errors.Errorf("empty field in %q", arg)
		}
		key := core.SortKey{Field: field, Direction: core.Asc}
		switch strings.ToLower(dir) {
		case "", "asc", "1":
			key.Direction = core.Asc
		case "desc", "-1":
			key.Direction = core.Desc
		default:
			return nil, errors.Errorf("invalid direction %q for field %q", dir, field)
		}
		keyList = append(keyList, key)
	}
	return keyList, nil
}

// parseDocument decodes an Extended JSON document. An empty string yields an
// empty document.
func parseDocument(text string) (bson.D, error) {
	if strings.TrimSpace(text) == "" {
		return bson.D{}, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &doc); err != nil {
		return nil, errors.Wrap(err, "invalid extended JSON document")
	}
	return doc, nil
}

// parsePipeline decodes an Extended JSON array of stage documents.
func parsePipeline(text string) ([]bson.D, error) {
	var wrapper struct {
		Pipeline []bson.D `bson:"pipeline"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"pipeline":`+text+`}`), false, &wrapper); err != nil {
		return nil, errors.Wrap(err, "invalid extended JSON pipeline")
	}
	if len(wrapper.Pipeline) == 0 {
		return nil, errors.New("pipeline has no stage")
	}
	return wrapper.Pipeline, nil
}

// filterExpression turns a decoded filter into an expression usable by
// builders, or nil when the filter is empty.
func filterExpression(doc bson.D) core.Expression {
	if len(doc) == 0 {
		return nil
	}
	return core.Lit(doc)
}

// writeDocument writes doc as one line of relaxed Extended JSON.
func writeDocument(w io.Writer, doc any) error {
	raw, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

// writeCursor drains cursor, one document per line.
func writeCursor(ctx context.Context, w io.Writer, cursor core.Cursor) error {
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		if err := writeDocument(w, doc); err != nil {
			return err
		}
	}
	return cursor.Err()
}
