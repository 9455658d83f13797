package main

import (
	"context"
	"sync"

	"tasqsym/logging"
	"tasqsym/session"
)

// transportFanout broadcasts every driver reply to every currently
// registered session.Transport (the MQTT channel when -mqtt-broker is set,
// the HTTP API server, and each currently-connected websocket channel), since
// session.Driver is built around exactly one Transport but tasqsymd
// speaks all three at once. A sub-transport that errors on Publish is
// dropped — for the websocket channels this is simply how a closed
// connection is noticed.
type transportFanout struct {
	logger logging.Logger

	mu    sync.Mutex
	items map[string]session.Transport
}

func newTransportFanout(logger logging.Logger) *transportFanout {
	return &transportFanout{logger: logger, items: make(map[string]session.Transport)}
}

func (f *transportFanout) Add(name string, t session.Transport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[name] = t
}

func (f *transportFanout) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, name)
}

func (f *transportFanout) Publish(ctx context.Context, resp session.Response) error {
	f.mu.Lock()
	snapshot := make(map[string]session.Transport, len(f.items))
	for k, v := range f.items {
		snapshot[k] = v
	}
	f.mu.Unlock()

	for name, t := range snapshot {
		if err := t.Publish(ctx, resp); err != nil {
			f.logger.Warnw("dropping transport after publish error", "transport", name, "error", err)
			f.Remove(name)
		}
	}
	return nil
}
