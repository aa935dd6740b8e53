// Package broker connects the controller to an MQTT broker: irrigation
// events are published on one topic and relay commands are consumed from
// another.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"garden_irrigation/internal/logger"
)

// Config selects the broker and topics.
type Config struct {
	Broker       string // tcp://host:1883
	ClientID     string
	Username     string
	Password     string
	CommandTopic string
	EventTopic   string
	QoS          byte
	MaxRetries   uint64
	RetryWindow  time.Duration
}

const disconnectQuiesceMS = 250

// Connect dials the broker, retrying with exponential backoff. The client
// is disconnected when ctx is canceled.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (mqtt.Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	// Keep the session so QoS 1 commands queued while offline are delivered.
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "broker", cfg.Broker, "err", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infow("mqtt_connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.RetryWindow
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 4
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warnw("mqtt_connect_failed", "broker", cfg.Broker, "err", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(disconnectQuiesceMS)
		log.Infow("mqtt_disconnected", "broker", cfg.Broker)
	}()
	return client, nil
}
