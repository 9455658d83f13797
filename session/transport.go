package session

import "context"

// Transport is how the driver replies to the client; concretely
// implemented by transport/mqttchan and transport/wschan.
type Transport interface {
	Publish(ctx context.Context, resp Response) error
}
