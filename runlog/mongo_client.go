package runlog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"tasqsym/session"
)

const (
	defaultCollection = "run_log"
	defaultTimeout    = 5 * time.Second
)

// MongoOptions configures NewMongoClient.
type MongoOptions struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type runRecordDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	RunID       string        `bson:"run_id"`
	TreeID      string        `bson:"tree_id"`
	StatusKind  string        `bson:"status_kind"`
	StatusMsg   string        `bson:"status_message"`
	NodeName    string        `bson:"node_name"`
	NodePointer []int         `bson:"node_pointer"`
	Timestamp   time.Time     `bson:"timestamp"`
}

// collection and indexView narrow *mongo.Collection down to what this
// package exercises, the same shape goadesign-goa-ai's runlog/mongo
// client uses to stay unit-testable without a live server.
type collection interface {
	InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongo.IndexModel) (string, error)
}

type mongoClient struct {
	coll    collection
	timeout time.Duration
}

// NewMongoClient connects a runlog.Client to a Mongo collection,
// ensuring the run_id index exists.
func NewMongoClient(ctx context.Context, opts MongoOptions) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("runlog: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("runlog: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	wrapped := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(collName)}

	indexCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(indexCtx, wrapped); err != nil {
		return nil, errors.Wrap(err, "runlog: ensure indexes")
	}

	return &mongoClient{coll: wrapped, timeout: timeout}, nil
}

func newMongoClientWithCollection(coll collection, timeout time.Duration) *mongoClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &mongoClient{coll: coll, timeout: timeout}
}

func (c *mongoClient) Append(ctx context.Context, record session.RunRecord, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	doc := runRecordDocument{
		RunID:       record.RunID,
		TreeID:      record.TreeID,
		StatusKind:  string(record.Status.Kind),
		StatusMsg:   record.Status.Message,
		NodeName:    record.NodeName,
		NodePointer: append([]int(nil), record.NodePointer...),
		Timestamp:   at.UTC(),
	}

	_, err := c.coll.InsertOne(ctx, doc)
	return errors.Wrap(err, "runlog: insert")
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "timestamp", Value: 1}},
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, document)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongo.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongo.IndexModel) (string, error) {
	return v.view.CreateOne(ctx, model)
}
