// Package runlog persists completed-run records, the [ADDED]
// completed-run log of the expanded specification: session.Driver calls
// Append once per run so operators can later query what a robot was
// asked to do and how it finished.
package runlog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"tasqsym/session"
)

// Client is the narrow surface Store needs from a backing store,
// grounded on goadesign-goa-ai's runlog feature split between a thin
// Store and a swappable Client.
type Client interface {
	Append(ctx context.Context, record session.RunRecord, at time.Time) error
}

// Store implements session.RunLogSink by delegating to a Client.
type Store struct {
	client Client
}

// NewStore builds a run log store backed by client.
func NewStore(client Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("runlog: client is required")
	}
	return &Store{client: client}, nil
}

// Append implements session.RunLogSink.
func (s *Store) Append(ctx context.Context, record session.RunRecord) error {
	if record.RunID == "" {
		return errors.New("runlog: run id is required")
	}
	return s.client.Append(ctx, record, time.Now())
}
