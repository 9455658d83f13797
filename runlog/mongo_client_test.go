package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"tasqsym/model"
	"tasqsym/session"
)

type fakeCollection struct {
	inserted []any
	indexes  fakeIndexView
}

func (c *fakeCollection) InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	c.inserted = append(c.inserted, document)
	return &mongo.InsertOneResult{}, nil
}

func (c *fakeCollection) Indexes() indexView { return &c.indexes }

type fakeIndexView struct {
	created []mongo.IndexModel
}

func (v *fakeIndexView) CreateOne(ctx context.Context, model mongo.IndexModel) (string, error) {
	v.created = append(v.created, model)
	return "run_id_1_timestamp_1", nil
}

func TestMongoClientAppendInsertsDocument(t *testing.T) {
	coll := &fakeCollection{}
	c := newMongoClientWithCollection(coll, time.Second)

	record := session.RunRecord{
		RunID:       "run-1",
		TreeID:      "tree-1",
		Status:      model.Success(""),
		NodeName:    "PICK",
		NodePointer: []int{0, 1},
	}
	require.NoError(t, c.Append(context.Background(), record, time.Unix(100, 0)))

	require.Len(t, coll.inserted, 1)
	doc, ok := coll.inserted[0].(runRecordDocument)
	require.True(t, ok)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, "tree-1", doc.TreeID)
	assert.Equal(t, "PICK", doc.NodeName)
	assert.Equal(t, []int{0, 1}, doc.NodePointer)
	assert.Equal(t, string(model.StatusSuccess), doc.StatusKind)
}

func TestEnsureIndexesCreatesCompoundIndex(t *testing.T) {
	coll := &fakeCollection{}
	require.NoError(t, ensureIndexes(context.Background(), coll))
	require.Len(t, coll.indexes.created, 1)
}

func TestNewMongoClientRejectsMissingClient(t *testing.T) {
	_, err := NewMongoClient(context.Background(), MongoOptions{Database: "tasqsym"})
	assert.Error(t, err)
}

func TestNewMongoClientRejectsMissingDatabase(t *testing.T) {
	_, err := NewMongoClient(context.Background(), MongoOptions{Client: &mongo.Client{}})
	assert.Error(t, err)
}
