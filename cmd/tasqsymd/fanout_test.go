package main

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/logging"
	"tasqsym/session"
)

type fakeTransport struct {
	published []session.Response
	err       error
}

func (f *fakeTransport) Publish(ctx context.Context, resp session.Response) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, resp)
	return nil
}

func TestTransportFanoutBroadcastsToEveryRegisteredTransport(t *testing.T) {
	f := newTransportFanout(logging.NewTest())
	a, b := &fakeTransport{}, &fakeTransport{}
	f.Add("a", a)
	f.Add("b", b)

	require.NoError(t, f.Publish(context.Background(), session.Response{ID: "1"}))

	require.Len(t, a.published, 1)
	require.Len(t, b.published, 1)
	assert.Equal(t, "1", a.published[0].ID)
}

func TestTransportFanoutDropsFailingTransport(t *testing.T) {
	f := newTransportFanout(logging.NewTest())
	good := &fakeTransport{}
	bad := &fakeTransport{err: errors.New("connection closed")}
	f.Add("good", good)
	f.Add("bad", bad)

	require.NoError(t, f.Publish(context.Background(), session.Response{ID: "1"}))
	require.NoError(t, f.Publish(context.Background(), session.Response{ID: "2"}))

	assert.Len(t, good.published, 2)

	f.mu.Lock()
	_, stillRegistered := f.items["bad"]
	f.mu.Unlock()
	assert.False(t, stillRegistered)
}
