package runlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/model"
	"tasqsym/runlog"
	"tasqsym/session"
)

type fakeClient struct {
	appended []session.RunRecord
}

func (f *fakeClient) Append(ctx context.Context, record session.RunRecord, at time.Time) error {
	f.appended = append(f.appended, record)
	return nil
}

func TestStoreAppendDelegatesToClient(t *testing.T) {
	client := &fakeClient{}
	store, err := runlog.NewStore(client)
	require.NoError(t, err)

	record := session.RunRecord{RunID: "run-1", TreeID: "t1", Status: model.Success(""), NodeName: "PICK"}
	require.NoError(t, store.Append(context.Background(), record))

	require.Len(t, client.appended, 1)
	assert.Equal(t, "run-1", client.appended[0].RunID)
}

func TestStoreAppendRejectsMissingRunID(t *testing.T) {
	client := &fakeClient{}
	store, err := runlog.NewStore(client)
	require.NoError(t, err)

	err = store.Append(context.Background(), session.RunRecord{TreeID: "t1"})
	assert.Error(t, err)
	assert.Empty(t, client.appended)
}

func TestNewStoreRejectsNilClient(t *testing.T) {
	_, err := runlog.NewStore(nil)
	assert.Error(t, err)
}
