// Package wschan implements session.Transport over a single
// bidirectional websocket connection: the same {id, command, ...}
// envelope mqttchan speaks, dispatched by its "command" field into a
// session.Driver's mailboxes, with replies written back on the same
// connection.
package wschan

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"tasqsym/logging"
	"tasqsym/session"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingInterval   = pongWait * 9 / 10
	maxMessageSize = 1 << 16
)

var upgrader = websocket.Upgrader{}

// Channel is a websocket-backed session.Transport; reads and dispatches
// inbound commands on its own goroutine, serializes writes behind
// writeMu the way niceyeti-tabular's fastview client serializes its
// single shared connection.
type Channel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  logging.Logger
}

// Upgrade promotes an HTTP request to a websocket, starts the read loop
// dispatching into driver's mailboxes, and returns the Channel to use
// as driver's Transport.
func Upgrade(w http.ResponseWriter, r *http.Request, driver *session.Driver, logger logging.Logger) (*Channel, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "wschan: upgrade")
	}

	ch := &Channel{conn: conn, logger: logger}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go ch.readLoop(driver)
	go ch.pingLoop()

	return ch, nil
}

// envelope peeks at the "command" discriminator shared by all three
// inbound message shapes before committing to a concrete decode.
type envelope struct {
	Command string `json:"command"`
}

func (ch *Channel) readLoop(driver *session.Driver) {
	for {
		_, payload, err := ch.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ch.logger.Warnw("wschan: connection closed unexpectedly", "error", err)
			}
			return
		}
		dispatch(payload, driver, ch.logger)
	}
}

func (ch *Channel) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		ch.writeMu.Lock()
		_ = ch.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := ch.conn.WriteMessage(websocket.PingMessage, nil)
		ch.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// dispatch decodes the shared envelope once, then redispatches into the
// command-specific shape and the matching driver mailbox.
func dispatch(payload []byte, driver *session.Driver, logger logging.Logger) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.Warnw("wschan: malformed message", "error", err)
		return
	}

	switch env.Command {
	case "setup":
		var cmd session.SetupCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warnw("wschan: malformed setup command", "error", err)
			return
		}
		driver.EnqueueSetup(cmd)
	case "run":
		var cmd session.RunCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warnw("wschan: malformed run command", "error", err)
			return
		}
		driver.EnqueueRun(cmd)
	case "abort":
		var cmd session.AbortCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warnw("wschan: malformed abort command", "error", err)
			return
		}
		driver.EnqueueAbort(cmd)
	default:
		logger.Warnw("wschan: unknown command", "command", env.Command)
	}
}

// Publish implements session.Transport.
func (ch *Channel) Publish(ctx context.Context, resp session.Response) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if err := ch.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.Wrap(err, "wschan: set write deadline")
	}
	return errors.Wrap(ch.conn.WriteJSON(resp), "wschan: write")
}

// Close closes the underlying connection.
func (ch *Channel) Close() error {
	return ch.conn.Close()
}
