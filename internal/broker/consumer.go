package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/relay"
)

// Submitter applies a relay command, typically relay.Queue.Submit.
type Submitter func(ctx context.Context, cmd relay.Command) error

type subscribeClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// commandMessage is the JSON form of a relay command. The plain text form
// "<channel> <ON|OFF>" is accepted too.
type commandMessage struct {
	ID      string `json:"id"`
	Channel int    `json:"channel"`
	State   string `json:"state"`
}

// DecodeCommand parses a command payload. The returned id is empty for
// plain text payloads.
func DecodeCommand(payload []byte) (id string, cmd relay.Command, err error) {
	text := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(text, "{") {
		cmd, err = relay.ParseCommand(text)
		return "", cmd, err
	}
	var m commandMessage
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return "", relay.Command{}, fmt.Errorf("%w: %v", relay.ErrMalformedCommand, err)
	}
	on, err := relay.ParseState(m.State)
	if err != nil {
		return m.ID, relay.Command{}, err
	}
	return m.ID, relay.Command{Channel: m.Channel, On: on}, nil
}

// Consumer subscribes to the command topic and forwards commands.
type Consumer struct {
	client subscribeClient
	topic  string
	qos    byte
	dedup  *Deduper
	submit Submitter
	log    *logger.Logger
}

func NewConsumer(client subscribeClient, topic string, qos byte, dedup *Deduper, submit Submitter, log *logger.Logger) *Consumer {
	if dedup == nil {
		dedup = NewDeduper(0, 0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{client: client, topic: topic, qos: qos, dedup: dedup, submit: submit, log: log}
}

// Run subscribes and blocks until ctx is canceled, then unsubscribes.
func (c *Consumer) Run(ctx context.Context) error {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		_ = c.Handle(ctx, msg)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, token.Error())
	}
	c.log.Infow("mqtt_subscribed", "topic", c.topic, "qos", c.qos)

	<-ctx.Done()
	c.client.Unsubscribe(c.topic).WaitTimeout(time.Second)
	return nil
}

// Handle decodes one message and submits the command unless it is a
// redelivery of an id already handled.
func (c *Consumer) Handle(ctx context.Context, msg mqtt.Message) error {
	id, cmd, err := DecodeCommand(msg.Payload())
	if err != nil {
		c.log.Warnw("mqtt_command_rejected", "topic", msg.Topic(), "payload", string(msg.Payload()), "err", err)
		return err
	}
	if !c.dedup.ShouldProcess(id) {
		c.log.Debugw("mqtt_command_duplicate", "id", id, "redelivery", msg.Duplicate())
		return nil
	}
	cmd.Source = relay.SourceMQTT
	if err := c.submit(ctx, cmd); err != nil {
		c.log.Warnw("mqtt_command_failed", "id", id, "command", cmd.String(), "err", err)
		return err
	}
	c.log.Infow("mqtt_command_applied", "id", id, "command", cmd.String())
	return nil
}
