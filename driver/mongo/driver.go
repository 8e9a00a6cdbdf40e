// Package driver provides the MongoDB backend for mongomoron.
// It implements core.Backend on top of the official MongoDB Go driver.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/leandroluk/mongomoron/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// namespaceNotFound is the server error code for a missing collection.
const namespaceNotFound = 26

// MongoBackend implements core.Backend with a *mongo.Client bound to one
// database.
type MongoBackend struct {
	client     *mongo.Client
	database   *mongo.Database
	txnOptions *mopt.TransactionOptions
}

var _ core.Backend = (*MongoBackend)(nil)

// Option configures NewBackend.
type Option func(*settings)

type settings struct {
	clientOptions          *mopt.ClientOptions
	connectTimeout         time.Duration
	serverSelectionTimeout time.Duration
	appName                string
	txnOptions             *mopt.TransactionOptions
}

// WithConnectTimeout sets the connection timeout. The default is 10 seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *settings) { s.connectTimeout = d }
}

// WithServerSelectionTimeout sets the server selection timeout. The default
// is 10 seconds.
func WithServerSelectionTimeout(d time.Duration) Option {
	return func(s *settings) { s.serverSelectionTimeout = d }
}

// WithAppName sets the application name reported to the server.
func WithAppName(name string) Option {
	return func(s *settings) { s.appName = name }
}

// WithClientOptions merges extra client options after the URI.
func WithClientOptions(opts *mopt.ClientOptions) Option {
	return func(s *settings) { s.clientOptions = opts }
}

// WithTransactionOptions sets the options used when a transaction starts.
func WithTransactionOptions(opts *mopt.TransactionOptions) Option {
	return func(s *settings) { s.txnOptions = opts }
}

// NewBackend connects to uri, pings the primary and binds the backend to
// database.
func NewBackend(ctx context.Context, uri string, database string, opts ...Option) (*MongoBackend, error) {
	if database == "" {
		return nil, errors.New("mongo driver: database name is empty")
	}
	s := &settings{
		connectTimeout:         10 * time.Second,
		serverSelectionTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := mopt.Client().ApplyURI(uri)
	clientOpts.SetConnectTimeout(s.connectTimeout).SetServerSelectionTimeout(s.serverSelectionTimeout)
	if s.appName != "" {
		clientOpts.SetAppName(s.appName)
	}
	optList := []*mopt.ClientOptions{clientOpts}
	if s.clientOptions != nil {
		optList = append(optList, s.clientOptions)
	}

	client, err := mongo.Connect(ctx, optList...)
	if err != nil {
		return nil, errors.Wrap(err, "mongo driver: connect")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "mongo driver: ping")
	}
	backend := NewBackendFromClient(client, database)
	backend.txnOptions = s.txnOptions
	return backend, nil
}

// NewBackendFromClient binds an already connected client to database.
func NewBackendFromClient(client *mongo.Client, database string) *MongoBackend {
	return &MongoBackend{client: client, database: client.Database(database)}
}

// Client returns the underlying client.
func (backend *MongoBackend) Client() *mongo.Client { return backend.client }

// Database returns the bound database.
func (backend *MongoBackend) Database() *mongo.Database { return backend.database }

func (backend *MongoBackend) coll(name string) *mongo.Collection {
	return backend.database.Collection(name)
}

// withSession makes ctx join the transaction carried by it, if any.
func (backend *MongoBackend) withSession(ctx context.Context) context.Context {
	if s, ok := core.SessionFrom(ctx).(*mongoSession); ok {
		return mongo.NewSessionContext(ctx, s.session)
	}
	return ctx
}

func (backend *MongoBackend) Ping(ctx context.Context) error {
	return backend.client.Ping(ctx, readpref.Primary())
}

func (backend *MongoBackend) Close(ctx context.Context) error {
	return backend.client.Disconnect(ctx)
}

func (backend *MongoBackend) StartSession(ctx context.Context) (core.Session, error) {
	session, err := backend.client.StartSession()
	if err != nil {
		return nil, err
	}
	return &mongoSession{session: session, txnOptions: backend.txnOptions}, nil
}

func (backend *MongoBackend) FindOne(ctx context.Context, collection string, filter bson.D, options core.FindOptions) (bson.M, error) {
	ctx = backend.withSession(ctx)
	findOpts := mopt.FindOne()
	if len(options.Projection) > 0 {
		findOpts.SetProjection(options.Projection)
	}
	var doc bson.M
	err := backend.coll(collection).FindOne(ctx, filter, findOpts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (backend *MongoBackend) Find(ctx context.Context, collection string, filter bson.D, options core.FindOptions) (core.Cursor, error) {
	ctx = backend.withSession(ctx)
	cursor, err := backend.coll(collection).Find(ctx, filter, findOptions(options))
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (backend *MongoBackend) InsertOne(ctx context.Context, collection string, document any) (any, error) {
	ctx = backend.withSession(ctx)
	result, err := backend.coll(collection).InsertOne(ctx, document)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

func (backend *MongoBackend) InsertMany(ctx context.Context, collection string, documents []any) ([]any, error) {
	ctx = backend.withSession(ctx)
	result, err := backend.coll(collection).InsertMany(ctx, documents)
	if err != nil {
		return nil, err
	}
	return result.InsertedIDs, nil
}

func (backend *MongoBackend) UpdateOne(ctx context.Context, collection string, filter, update bson.D, upsert bool) (*core.UpdateResult, error) {
	ctx = backend.withSession(ctx)
	result, err := backend.coll(collection).UpdateOne(ctx, filter, update, mopt.Update().SetUpsert(upsert))
	if err != nil {
		return nil, err
	}
	return updateResult(result), nil
}

func (backend *MongoBackend) UpdateMany(ctx context.Context, collection string, filter, update bson.D, upsert bool) (*core.UpdateResult, error) {
	ctx = backend.withSession(ctx)
	result, err := backend.coll(collection).UpdateMany(ctx, filter, update, mopt.Update().SetUpsert(upsert))
	if err != nil {
		return nil, err
	}
	return updateResult(result), nil
}

func (backend *MongoBackend) DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error) {
	ctx = backend.withSession(ctx)
	result, err := backend.coll(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (backend *MongoBackend) Aggregate(ctx context.Context, collection string, pipeline []bson.D) (core.Cursor, error) {
	ctx = backend.withSession(ctx)
	cursor, err := backend.coll(collection).Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (backend *MongoBackend) CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error) {
	ctx = backend.withSession(ctx)
	return backend.coll(collection).CountDocuments(ctx, filter)
}

func (backend *MongoBackend) CreateCollection(ctx context.Context, name string) error {
	ctx = backend.withSession(ctx)
	return backend.database.CreateCollection(ctx, name)
}

func (backend *MongoBackend) DropCollection(ctx context.Context, name string) error {
	ctx = backend.withSession(ctx)
	return translateError(backend.coll(name).Drop(ctx))
}

// ListCollectionNames runs outside any transaction carried by ctx; the server
// rejects listCollections inside one.
func (backend *MongoBackend) ListCollectionNames(ctx context.Context) ([]string, error) {
	return backend.database.ListCollectionNames(ctx, bson.D{})
}

func (backend *MongoBackend) CreateIndex(ctx context.Context, collection string, keys bson.D, unique bool, name string) (string, error) {
	ctx = backend.withSession(ctx)
	indexOpts := mopt.Index().SetUnique(unique)
	if name != "" {
		indexOpts.SetName(name)
	}
	return backend.coll(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: indexOpts})
}

//region Helpers

func findOptions(options core.FindOptions) *mopt.FindOptions {
	findOpts := mopt.Find()
	if len(options.Sort) > 0 {
		findOpts.SetSort(options.Sort)
	}
	if len(options.Projection) > 0 {
		findOpts.SetProjection(options.Projection)
	}
	if options.Limit > 0 {
		findOpts.SetLimit(options.Limit)
	}
	if options.Skip > 0 {
		findOpts.SetSkip(options.Skip)
	}
	return findOpts
}

func updateResult(result *mongo.UpdateResult) *core.UpdateResult {
	return &core.UpdateResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
		UpsertedCount: result.UpsertedCount,
		UpsertedID:    result.UpsertedID,
	}
}

// translateError maps server errors that have a core equivalent. The
// original error stays reachable through errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var commandErr mongo.CommandError
	if errors.As(err, &commandErr) && commandErr.Code == namespaceNotFound {
		return fmt.Errorf("%w: %w", core.ErrCollectionNotFound, err)
	}
	return err
}

//endregion
