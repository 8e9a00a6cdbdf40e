package main

import (
	"fmt"
	"sort"

	"github.com/leandroluk/mongomoron/core"
	"github.com/spf13/cobra"
)

func (a *app) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the database is reachable",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			if err := a.conn.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}),
	}
}

func (a *app) collectionsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"coll"},
		Short:   "Manage collections",
	}

	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the collections of the database",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			nameList, err := a.conn.ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			sort.Strings(nameList)
			for _, name := range nameList {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	})

	var override bool
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			coll, err := a.conn.CreateCollection(cmd.Context(), args[0], override)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", coll)
			return nil
		}),
	}
	create.Flags().BoolVar(&override, "override", false, "drop the collection first when it exists")
	c.AddCommand(create)

	c.AddCommand(&cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a collection; dropping a missing one succeeds",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if err := a.conn.DropCollection(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
			return nil
		}),
	})

	c.AddCommand(&cobra.Command{
		Use:   "exists <name>",
		Short: "Report whether a collection exists",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			exists, err := a.conn.CollectionExists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		}),
	})

	return c
}

func (a *app) indexCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "index",
		Short: "Manage indexes",
	}

	var (
		unique bool
		name   string
	)
	create := &cobra.Command{
		Use:   "create <collection> <field[:asc|desc]>...",
		Short: "Create an index",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			b, err := indexBuilder(args[0], args[1:], unique, name)
			if err != nil {
				return err
			}
			indexName, err := a.conn.CreateIndex(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), indexName)
			return nil
		}),
	}
	create.Flags().BoolVar(&unique, "unique", false, "reject duplicate keys")
	create.Flags().StringVar(&name, "name", "", "index name (derived by the server when empty)")
	c.AddCommand(create)

	return c
}

func (a *app) findCmd() *cobra.Command {
	var (
		filter  string
		sortArg []string
		project []string
		limit   int64
		skip    int64
		one     bool
	)
	c := &cobra.Command{
		Use:   "find <collection>",
		Short: "Print the documents matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			q, err := queryBuilder(args[0], filter, sortArg, project, limit, skip, one)
			if err != nil {
				return err
			}
			result, err := a.conn.Execute(cmd.Context(), q)
			if err != nil {
				return err
			}
			if result.One {
				if result.Document == nil {
					return nil
				}
				return writeDocument(cmd.OutOrStdout(), result.Document)
			}
			return writeCursor(cmd.Context(), cmd.OutOrStdout(), result.Cursor)
		}),
	}
	f := c.Flags()
	f.StringVar(&filter, "filter", "", "filter as an extended JSON document")
	f.StringSliceVar(&sortArg, "sort", nil, "sort key as field[:asc|desc], repeatable")
	f.StringSliceVar(&project, "project", nil, "fields to return")
	f.Int64Var(&limit, "limit", 0, "maximum number of documents")
	f.Int64Var(&skip, "skip", 0, "number of documents to skip")
	f.BoolVar(&one, "one", false, "return the first match only")
	return c
}

func (a *app) aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <collection> <pipeline>",
		Short: "Run an aggregation pipeline given as an extended JSON array",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			b, err := pipelineBuilder(args[0], args[1])
			if err != nil {
				return err
			}
			cursor, err := a.conn.Aggregate(cmd.Context(), b)
			if err != nil {
				return err
			}
			return writeCursor(cmd.Context(), cmd.OutOrStdout(), cursor)
		}),
	}
}

func (a *app) countCmd() *cobra.Command {
	var filter string
	c := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the documents matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			doc, err := parseDocument(filter)
			if err != nil {
				return err
			}
			b := core.Count(core.NewCollection(args[0]))
			if expr := filterExpression(doc); expr != nil {
				b.Filter(expr)
			}
			count, err := a.conn.Count(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		}),
	}
	c.Flags().StringVar(&filter, "filter", "", "filter as an extended JSON document")
	return c
}

//region Builders

func indexBuilder(collection string, keyArgs []string, unique bool, name string) (*core.IndexBuilder, error) {
	keyList, err := parseKeys(keyArgs)
	if err != nil {
		return nil, err
	}
	b := core.Index(core.NewCollection(collection)).Unique(unique).Name(name)
	for _, key := range keyList {
		b.Key(key.Field, key.Direction)
	}
	return b, nil
}

func queryBuilder(collection, filter string, sortArgs, project []string, limit, skip int64, one bool) (*core.QueryBuilder, error) {
	doc, err := parseDocument(filter)
	if err != nil {
		return nil, err
	}
	keyList, err := parseKeys(sortArgs)
	if err != nil {
		return nil, err
	}
	coll := core.NewCollection(collection)
	q := core.Query(coll)
	if one {
		q = core.QueryOne(coll)
	}
	if expr := filterExpression(doc); expr != nil {
		q.Filter(expr)
	}
	for _, key := range keyList {
		q.Sort(key.Field, key.Direction)
	}
	if len(project) > 0 {
		q.Project(project...)
	}
	if limit != 0 {
		q.Limit(limit)
	}
	if skip != 0 {
		q.Skip(skip)
	}
	return q, nil
}

func pipelineBuilder(collection, text string) (*core.AggregationPipelineBuilder, error) {
	stageList, err := parsePipeline(text)
	if err != nil {
		return nil, err
	}
	b := core.Aggregate(core.NewCollection(collection))
	for _, stage := range stageList {
		b.Stage(stage)
	}
	return b, nil
}

//endregion
