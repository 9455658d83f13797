package wschan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/adapter"
	"tasqsym/blackboard"
	"tasqsym/controller"
	"tasqsym/kinematics"
	"tasqsym/logging"
	"tasqsym/registry"
	"tasqsym/session"
	"tasqsym/skill"
)

type chanTransport struct {
	ch chan session.Response
}

func (c *chanTransport) Publish(ctx context.Context, resp session.Response) error {
	c.ch <- resp
	return nil
}

func buildTestDriver(transport session.Transport) *session.Driver {
	models := kinematics.NewModelRegistry()
	adapters := controller.NewAdapterRegistry()
	combiners := adapter.NewCombinerRegistry()
	skills := registry.New[skill.SkillFactory]()
	decoders := registry.New[skill.DecoderFactory]()
	iface := skill.NewInterface(skills, decoders, blackboard.New())
	return session.NewDriver(models, adapters, nil, combiners, iface, blackboard.New(), transport, nil, logging.NewTest())
}

func TestDispatchMalformedPayloadIsIgnored(t *testing.T) {
	transport := &chanTransport{ch: make(chan session.Response, 4)}
	driver := buildTestDriver(transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Start(ctx)

	dispatch([]byte("not json"), driver, logging.NewTest())

	select {
	case resp := <-transport.ch:
		t.Fatalf("unexpected response: %+v", resp)
	case <-time.After(200 * time.Millisecond):
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// TestUpgradeReadsCommandsFromClient exercises a real HTTP->websocket
// upgrade and confirms a client-sent "abort" command reaches the
// driver's mailbox and produces a reply on whatever transport the
// driver was constructed with.
func TestUpgradeReadsCommandsFromClient(t *testing.T) {
	transport := &chanTransport{ch: make(chan session.Response, 4)}
	driver := buildTestDriver(transport)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		_, err := Upgrade(w, r, driver, logging.NewTest())
		require.NoError(t, err)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"id":      "a1",
		"command": "abort",
	}))

	select {
	case resp := <-transport.ch:
		assert.Equal(t, "a1", resp.ID)
		assert.Equal(t, "abort", resp.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for driver response")
	}
}

// TestChannelPublishWritesJSONToClient exercises Publish independently
// of any driver, confirming the client reads back exactly what was
// published.
func TestChannelPublishWritesJSONToClient(t *testing.T) {
	driver := buildTestDriver(nil)

	upgraded := make(chan *Channel, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ch, err := Upgrade(w, r, driver, logging.NewTest())
		require.NoError(t, err)
		upgraded <- ch
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	var ch *Channel
	select {
	case ch = <-upgraded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for upgrade")
	}

	want := session.Response{ID: "r1", Type: "response", Completion: true}
	require.NoError(t, ch.Publish(context.Background(), want))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got session.Response
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, got.Completion)
}
