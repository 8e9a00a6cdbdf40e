// Package core provides the fundamental building blocks of mongomoron.
// This file defines the aggregation pipeline builder.
package core

import (
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// AggregationPipelineBuilder accumulates aggregation stages.
//
// Stages keep their call order and are only compiled when Build runs.
//
// Example:
//
//	orders := core.NewCollection("orders")
//	p := core.Aggregate(orders).
//		Match(orders.Field("status").Eq("paid")).
//		Group(core.F("customer"), core.As("total", core.Sum(core.F("amount")))).
//		Sort(core.SortKey{Field: "total", Direction: core.Desc})
type AggregationPipelineBuilder struct {
	collection Collection
	stageList  []stage
}

// stage compiles one pipeline stage.
type stage func() (bson.D, error)

// PipelineSpec is the compiled form of an AggregationPipelineBuilder.
type PipelineSpec struct {
	Collection string
	Pipeline   []bson.D
}

// Aggregate starts an aggregation pipeline on collection.
func Aggregate(collection Collection) *AggregationPipelineBuilder {
	return &AggregationPipelineBuilder{collection: collection}
}

func (b *AggregationPipelineBuilder) builder() {}

// Kind implements Builder.
func (b *AggregationPipelineBuilder) Kind() Kind { return KindAggregate }

// Collection implements Builder.
func (b *AggregationPipelineBuilder) Collection() Collection { return b.collection }

// Len returns the number of stages.
func (b *AggregationPipelineBuilder) Len() int { return len(b.stageList) }

func (b *AggregationPipelineBuilder) add(s stage) *AggregationPipelineBuilder {
	b.stageList = append(b.stageList, s)
	return b
}

// Stage appends a raw stage document.
func (b *AggregationPipelineBuilder) Stage(doc bson.D) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) { return doc, nil })
}

// Match appends a $match stage. Several predicates are combined with $and.
func (b *AggregationPipelineBuilder) Match(exprs ...Expression) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		filter, err := compileFilterList(exprs)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: string(StageMatch), Value: filter}}, nil
	})
}

// Project appends a $project stage.
func (b *AggregationPipelineBuilder) Project(fields ...Assign) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		doc, err := assignDocument(fields)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: string(StageProject), Value: doc}}, nil
	})
}

// Group appends a $group stage keyed by id with the given accumulators.
// A nil id groups every document together.
func (b *AggregationPipelineBuilder) Group(id any, accumulators ...Assign) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		idValue, err := compileValue(id)
		if err != nil {
			return nil, err
		}
		doc, err := assignDocument(accumulators)
		if err != nil {
			return nil, err
		}
		group := append(bson.D{{Key: "_id", Value: idValue}}, doc...)
		return bson.D{{Key: string(StageGroup), Value: group}}, nil
	})
}

// Sort appends a $sort stage.
func (b *AggregationPipelineBuilder) Sort(keys ...SortKey) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		doc, err := sortDocument(KindAggregate, b.collection.Name(), keys)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, errors.Wrap(ErrUnsupportedOperation, "$sort without keys")
		}
		return bson.D{{Key: string(StageSort), Value: doc}}, nil
	})
}

// Limit appends a $limit stage.
func (b *AggregationPipelineBuilder) Limit(n int64) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		return bson.D{{Key: string(StageLimit), Value: n}}, nil
	})
}

// Skip appends a $skip stage.
func (b *AggregationPipelineBuilder) Skip(n int64) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		return bson.D{{Key: string(StageSkip), Value: n}}, nil
	})
}

// Unwind appends an $unwind stage for the array field at path. The leading
// "$" is optional.
func (b *AggregationPipelineBuilder) Unwind(path string) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		fieldPath := path
		if !strings.HasPrefix(fieldPath, "$") {
			fieldPath = "$" + fieldPath
		}
		return bson.D{{Key: string(StageUnwind), Value: fieldPath}}, nil
	})
}

// Lookup appends a $lookup stage joining from on localField == foreignField
// and storing matches in as.
func (b *AggregationPipelineBuilder) Lookup(from Collection, localField, foreignField, as string) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		return bson.D{{Key: string(StageLookup), Value: bson.D{
			{Key: "from", Value: from.Name()},
			{Key: "localField", Value: localField},
			{Key: "foreignField", Value: foreignField},
			{Key: "as", Value: as},
		}}}, nil
	})
}

// AddFields appends an $addFields stage.
func (b *AggregationPipelineBuilder) AddFields(fields ...Assign) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		doc, err := assignDocument(fields)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: string(StageAddFields), Value: doc}}, nil
	})
}

// Count appends a $count stage writing the number of documents to field.
func (b *AggregationPipelineBuilder) Count(field string) *AggregationPipelineBuilder {
	return b.add(func() (bson.D, error) {
		return bson.D{{Key: string(StageCount), Value: field}}, nil
	})
}

// Build compiles every stage in order.
func (b *AggregationPipelineBuilder) Build() (*PipelineSpec, error) {
	pipeline := make([]bson.D, 0, len(b.stageList))
	for _, s := range b.stageList {
		doc, err := s()
		if err != nil {
			if IsCompilationError(err) {
				return nil, err
			}
			return nil, compilationError(KindAggregate, b.collection.Name(), err)
		}
		pipeline = append(pipeline, doc)
	}
	return &PipelineSpec{Collection: b.collection.Name(), Pipeline: pipeline}, nil
}
