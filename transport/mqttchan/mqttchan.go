// Package mqttchan implements session.Transport over a single MQTT
// command/feedback topic pair, the wire shape of tasqsym's own
// mqtt_bridge.py: one inbound topic carrying {id, command, ...}
// envelopes dispatched by their "command" field, one outbound topic
// carrying every reply.
package mqttchan

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"tasqsym/logging"
	"tasqsym/session"
)

const (
	topicCommand  = "tasqsym/c2d/command"
	topicFeedback = "tasqsym/d2c/feedback"
)

// Config mirrors the connection knobs of gphunter1004-mqtt-bridges'
// MQTTConfig, trimmed to what a single always-on client needs.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
}

// Channel is an MQTT-backed session.Transport.
type Channel struct {
	client mqtt.Client
	qos    byte
	logger logging.Logger
}

// envelope peeks at the "command" discriminator shared by all three
// inbound message shapes before committing to a concrete decode.
type envelope struct {
	Command string `json:"command"`
}

// Connect dials the broker, subscribes topicCommand, and wires every
// received message into driver's mailboxes. The returned *Channel is
// the session.Transport the driver replies through.
func Connect(ctx context.Context, cfg Config, driver *session.Driver, logger logging.Logger) (*Channel, error) {
	ch := &Channel{qos: cfg.QoS, logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(topicCommand, cfg.QoS, ch.handleMessage(driver))
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Warnw("mqttchan: subscribe failed", "error", err, "topic", topicCommand)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnw("mqttchan: connection lost", "error", err)
	})

	ch.client = mqtt.NewClient(opts)
	token := ch.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("mqttchan: connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "mqttchan: connect")
	}
	return ch, nil
}

// handleMessage adapts dispatch to the paho MessageHandler signature.
func (ch *Channel) handleMessage(driver *session.Driver) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		dispatch(msg.Payload(), driver, ch.logger)
	}
}

// dispatch decodes the shared envelope once, then redispatches into the
// command-specific shape and the matching driver mailbox. Kept free of
// the mqtt.Message type so it can be exercised without a broker.
func dispatch(payload []byte, driver *session.Driver, logger logging.Logger) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logger.Warnw("mqttchan: malformed message", "error", err)
		return
	}

	switch env.Command {
	case "setup":
		var cmd session.SetupCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warnw("mqttchan: malformed setup command", "error", err)
			return
		}
		driver.EnqueueSetup(cmd)
	case "run":
		var cmd session.RunCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warnw("mqttchan: malformed run command", "error", err)
			return
		}
		driver.EnqueueRun(cmd)
	case "abort":
		var cmd session.AbortCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warnw("mqttchan: malformed abort command", "error", err)
			return
		}
		driver.EnqueueAbort(cmd)
	default:
		logger.Warnw("mqttchan: unknown command", "command", env.Command)
	}
}

// Publish implements session.Transport by publishing resp to the single
// feedback topic.
func (ch *Channel) Publish(ctx context.Context, resp session.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "mqttchan: marshal response")
	}
	token := ch.client.Publish(topicFeedback, ch.qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("mqttchan: publish timed out")
	}
	return errors.Wrap(token.Error(), "mqttchan: publish")
}

// Close disconnects the underlying MQTT client.
func (ch *Channel) Close() {
	ch.client.Disconnect(250)
}
