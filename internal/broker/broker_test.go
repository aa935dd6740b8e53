package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garden_irrigation/internal/models"
	"garden_irrigation/internal/relay"
)

type doneToken struct {
	err     error
	timeout bool
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic     string
	payload   []byte
	duplicate bool
}

func (m message) Duplicate() bool   { return m.duplicate }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 7 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type fakeClient struct {
	mu        sync.Mutex
	published [][]byte
	token     doneToken
	handler   mqtt.MessageHandler
	subscribe chan struct{}
	unsubbed  bool
}

func (c *fakeClient) Publish(_ string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, payload.([]byte))
	return c.token
}

func (c *fakeClient) Subscribe(_ string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handler = cb
	c.mu.Unlock()
	if c.subscribe != nil {
		close(c.subscribe)
	}
	return c.token
}

func (c *fakeClient) Unsubscribe(...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubbed = true
	return doneToken{}
}

func (c *fakeClient) deliver(m message) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(nil, m)
}

func TestDecodeCommand(t *testing.T) {
	id, cmd, err := DecodeCommand([]byte(" 2 on\n"))
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, relay.Command{Channel: 2, On: true}, cmd)

	id, cmd, err = DecodeCommand([]byte(`{"id":"a1","channel":3,"state":"OFF"}`))
	require.NoError(t, err)
	assert.Equal(t, "a1", id)
	assert.Equal(t, relay.Command{Channel: 3, On: false}, cmd)

	_, _, err = DecodeCommand([]byte(`{"channel":3,"state":"LOUD"}`))
	assert.ErrorIs(t, err, relay.ErrInvalidState)

	_, _, err = DecodeCommand([]byte(`{"channel":`))
	assert.ErrorIs(t, err, relay.ErrMalformedCommand)
}

func TestDeduper(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	d := NewDeduper(time.Minute, 2)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))

	now = now.Add(61 * time.Second)
	assert.True(t, d.ShouldProcess("a"), "expired ids are processed again")

	now = now.Add(time.Second)
	assert.True(t, d.ShouldProcess("b"))
	now = now.Add(time.Second)
	assert.True(t, d.ShouldProcess("c"))
	assert.Equal(t, 2, d.Len())
	assert.False(t, d.ShouldProcess("c"))
	assert.True(t, d.ShouldProcess("a"), "oldest id is evicted when full")
}

func TestPublisher_PublishEvent(t *testing.T) {
	c := &fakeClient{}
	p := NewPublisher(c, "garden/events", 1)
	ev := models.IrrigationEvent{EventID: "e1", Type: models.EventIrrigationStart, Description: "on"}

	require.NoError(t, p.PublishEvent(ev))
	require.Len(t, c.published, 1)
	var got models.IrrigationEvent
	require.NoError(t, json.Unmarshal(c.published[0], &got))
	assert.Equal(t, "e1", got.EventID)

	c.token = doneToken{timeout: true}
	assert.ErrorIs(t, p.PublishEvent(ev), ErrPublishTimeout)

	boom := errors.New("not connected")
	c.token = doneToken{err: boom}
	assert.ErrorIs(t, p.PublishEvent(ev), boom)
}

func TestConsumer_HandleDedupesRedelivery(t *testing.T) {
	var got []relay.Command
	submit := func(_ context.Context, cmd relay.Command) error {
		got = append(got, cmd)
		return nil
	}
	c := NewConsumer(&fakeClient{}, "garden/relay/cmd", 1, NewDeduper(time.Minute, 10), submit, nil)
	ctx := context.Background()

	payload := []byte(`{"id":"x","channel":1,"state":"ON"}`)
	require.NoError(t, c.Handle(ctx, message{payload: payload}))
	require.NoError(t, c.Handle(ctx, message{payload: payload, duplicate: true}))
	require.Len(t, got, 1)
	assert.Equal(t, relay.SourceMQTT, got[0].Source)

	require.Error(t, c.Handle(ctx, message{payload: []byte("nonsense")}))
	assert.Len(t, got, 1)
}

func TestConsumer_RunSubscribesUntilCanceled(t *testing.T) {
	client := &fakeClient{subscribe: make(chan struct{})}
	applied := make(chan relay.Command, 1)
	submit := func(_ context.Context, cmd relay.Command) error {
		applied <- cmd
		return nil
	}
	c := NewConsumer(client, "garden/relay/cmd", 1, nil, submit, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-client.subscribe
	client.deliver(message{payload: []byte("4 OFF")})
	select {
	case cmd := <-applied:
		assert.Equal(t, 4, cmd.Channel)
	case <-time.After(time.Second):
		t.Fatal("command not applied")
	}

	cancel()
	require.NoError(t, <-done)
	assert.True(t, client.unsubbed)
}

func TestConsumer_RunSubscribeError(t *testing.T) {
	client := &fakeClient{token: doneToken{err: errors.New("not authorized")}}
	c := NewConsumer(client, "garden/relay/cmd", 1, nil, nil, nil)
	require.Error(t, c.Run(context.Background()))
}
