package core

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// recordedCall is one backend invocation seen by fakeBackend.
type recordedCall struct {
	operation  Operation
	collection string
	filter     bson.D
	update     bson.D
	options    FindOptions
	documents  []any
	pipeline   []bson.D
	upsert     bool
	keys       bson.D
	unique     bool
	session    Session
}

// fakeBackend is an in-memory Backend that records every call.
type fakeBackend struct {
	mutex       sync.Mutex
	callList    []recordedCall
	sessionList []*fakeSession
	collections map[string]bool

	// Canned results and errors.
	findOneDoc    bson.M
	cursor        Cursor
	nextID        int
	updateResult  *UpdateResult
	deletedCount  int64
	count         int64
	err           error
	startErr      error
	commitErr     error
	abortErr      error
	startTxnErr   error
	dropErr       error
	createIndexNm string
	// failOn makes a single operation fail with failErr.
	failOn  Operation
	failErr error
}

func newFakeBackend(collections ...string) *fakeBackend {
	b := &fakeBackend{collections: map[string]bool{}}
	for _, c := range collections {
		b.collections[c] = true
	}
	return b
}

func (b *fakeBackend) record(ctx context.Context, call recordedCall) {
	call.session = SessionFrom(ctx)
	b.mutex.Lock()
	b.callList = append(b.callList, call)
	b.mutex.Unlock()
}

func (b *fakeBackend) errFor(op Operation) error {
	if b.failOn == op {
		return b.failErr
	}
	return b.err
}

func (b *fakeBackend) calls() []recordedCall {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]recordedCall(nil), b.callList...)
}

func (b *fakeBackend) operations() []Operation {
	var opList []Operation
	for _, c := range b.calls() {
		opList = append(opList, c.operation)
	}
	return opList
}

func (b *fakeBackend) Ping(ctx context.Context) error  { return b.err }
func (b *fakeBackend) Close(ctx context.Context) error { return nil }

func (b *fakeBackend) StartSession(ctx context.Context) (Session, error) {
	if b.startErr != nil {
		return nil, b.startErr
	}
	s := &fakeSession{backend: b}
	b.mutex.Lock()
	b.sessionList = append(b.sessionList, s)
	b.mutex.Unlock()
	return s, nil
}

func (b *fakeBackend) FindOne(ctx context.Context, collection string, filter bson.D, options FindOptions) (bson.M, error) {
	b.record(ctx, recordedCall{operation: OperationFindOne, collection: collection, filter: filter, options: options})
	return b.findOneDoc, b.err
}

func (b *fakeBackend) Find(ctx context.Context, collection string, filter bson.D, options FindOptions) (Cursor, error) {
	b.record(ctx, recordedCall{operation: OperationFind, collection: collection, filter: filter, options: options})
	return b.cursor, b.err
}

func (b *fakeBackend) InsertOne(ctx context.Context, collection string, document any) (any, error) {
	b.record(ctx, recordedCall{operation: OperationInsertOne, collection: collection, documents: []any{document}})
	if b.err != nil {
		return nil, b.err
	}
	b.nextID++
	return b.nextID, nil
}

func (b *fakeBackend) InsertMany(ctx context.Context, collection string, documents []any) ([]any, error) {
	b.record(ctx, recordedCall{operation: OperationInsertMany, collection: collection, documents: documents})
	if b.err != nil {
		return nil, b.err
	}
	idList := make([]any, 0, len(documents))
	for range documents {
		b.nextID++
		idList = append(idList, b.nextID)
	}
	return idList, nil
}

func (b *fakeBackend) UpdateOne(ctx context.Context, collection string, filter, update bson.D, upsert bool) (*UpdateResult, error) {
	b.record(ctx, recordedCall{operation: OperationUpdateOne, collection: collection, filter: filter, update: update, upsert: upsert})
	return b.updateResult, b.err
}

func (b *fakeBackend) UpdateMany(ctx context.Context, collection string, filter, update bson.D, upsert bool) (*UpdateResult, error) {
	b.record(ctx, recordedCall{operation: OperationUpdateMany, collection: collection, filter: filter, update: update, upsert: upsert})
	return b.updateResult, b.err
}

func (b *fakeBackend) DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error) {
	b.record(ctx, recordedCall{operation: OperationDeleteMany, collection: collection, filter: filter})
	if err := b.errFor(OperationDeleteMany); err != nil {
		return 0, err
	}
	return b.deletedCount, nil
}

func (b *fakeBackend) Aggregate(ctx context.Context, collection string, pipeline []bson.D) (Cursor, error) {
	b.record(ctx, recordedCall{operation: OperationAggregate, collection: collection, pipeline: pipeline})
	return b.cursor, b.err
}

func (b *fakeBackend) CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error) {
	b.record(ctx, recordedCall{operation: OperationCount, collection: collection, filter: filter})
	return b.count, b.err
}

func (b *fakeBackend) CreateCollection(ctx context.Context, name string) error {
	b.record(ctx, recordedCall{operation: OperationCreateCollection, collection: name})
	b.mutex.Lock()
	b.collections[name] = true
	b.mutex.Unlock()
	return b.err
}

func (b *fakeBackend) DropCollection(ctx context.Context, name string) error {
	b.record(ctx, recordedCall{operation: OperationDropCollection, collection: name})
	if b.dropErr != nil {
		return b.dropErr
	}
	b.mutex.Lock()
	delete(b.collections, name)
	b.mutex.Unlock()
	return nil
}

func (b *fakeBackend) ListCollectionNames(ctx context.Context) ([]string, error) {
	b.record(ctx, recordedCall{operation: OperationListCollections})
	b.mutex.Lock()
	defer b.mutex.Unlock()
	nameList := make([]string, 0, len(b.collections))
	for name := range b.collections {
		nameList = append(nameList, name)
	}
	return nameList, b.err
}

func (b *fakeBackend) CreateIndex(ctx context.Context, collection string, keys bson.D, unique bool, name string) (string, error) {
	b.record(ctx, recordedCall{operation: OperationCreateIndex, collection: collection, keys: keys, unique: unique})
	if name == "" {
		name = b.createIndexNm
	}
	return name, b.err
}

// fakeSession counts lifecycle calls.
type fakeSession struct {
	backend *fakeBackend
	mutex   sync.Mutex
	started int
	commits int
	aborts  int
	ended   int
}

func (s *fakeSession) StartTransaction() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.started++
	return s.backend.startTxnErr
}

func (s *fakeSession) CommitTransaction(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.commits++
	return s.backend.commitErr
}

func (s *fakeSession) AbortTransaction(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.aborts++
	return s.backend.abortErr
}

func (s *fakeSession) EndSession(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ended++
}

// fakeCursor serves documents from memory.
type fakeCursor struct {
	docList []bson.M
	pos     int
	closed  bool
}

func (c *fakeCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.docList) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(v any) error {
	raw, err := bson.Marshal(c.docList[c.pos-1])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

func (c *fakeCursor) All(ctx context.Context, results any) error {
	out, ok := results.(*[]bson.M)
	if !ok {
		return ErrUnsupportedOperation
	}
	*out = append(*out, c.docList[c.pos:]...)
	c.pos = len(c.docList)
	c.closed = true
	return nil
}

func (c *fakeCursor) Err() error                      { return nil }
func (c *fakeCursor) Close(ctx context.Context) error { c.closed = true; return nil }

func newTestConnection(t interface{ Helper() }, backend *fakeBackend, opts ...Option) *Connection {
	t.Helper()
	c, err := NewConnection(backend, opts...)
	if err != nil {
		panic(err)
	}
	return c
}
