// Package mqtt subscribes to an MQTT topic carrying JSON TPMS readings.
package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/lantern/internal/readers"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const connectTimeout = 30 * time.Second

// Reader receives readings from an MQTT broker
type Reader struct {
	ctx         context.Context
	name        string
	cfg         config.MQTTData
	client      paho.Client
	distributor chan<- types.Reading
	logger      *zap.SugaredLogger
}

// New creates an MQTT reader. The broker connection is made by StartReader.
func New(ctx context.Context, name string, cfg *config.MQTTData, distributor chan<- types.Reading, logger *zap.SugaredLogger) (*Reader, error) {
	if cfg == nil || cfg.Broker == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("reader %s: mqtt needs a broker and a topic", name)
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return nil, fmt.Errorf("reader %s: invalid qos %d", name, cfg.QoS)
	}

	r := &Reader{
		ctx:         ctx,
		name:        name,
		cfg:         *cfg,
		distributor: distributor,
		logger:      logger,
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "lantern-" + name
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c paho.Client) {
			// subscriptions do not survive a reconnect with a clean session
			if err := r.subscribe(c); err != nil {
				r.logger.Errorf("mqtt reader [%s]: %v", r.name, err)
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			r.logger.Warnf("mqtt reader [%s] lost its connection: %v", r.name, err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	r.client = paho.NewClient(opts)

	return r, nil
}

func (r *Reader) ReaderName() string {
	return r.name
}

// StartReader connects to the broker; the topic is subscribed on every connect
func (r *Reader) StartReader() error {
	r.logger.Infof("connecting mqtt reader [%s] to %s", r.name, r.cfg.Broker)
	token := r.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt reader %s: timed out connecting to %s", r.name, r.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt reader %s: connect: %w", r.name, err)
	}
	return nil
}

// StopReader disconnects from the broker
func (r *Reader) StopReader() error {
	if r.client.IsConnected() {
		r.client.Disconnect(250)
	}
	return nil
}

func (r *Reader) subscribe(c paho.Client) error {
	token := c.Subscribe(r.cfg.Topic, byte(r.cfg.QoS), r.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.cfg.Topic, err)
	}
	r.logger.Infof("mqtt reader [%s] subscribed to %s", r.name, r.cfg.Topic)
	return nil
}

func (r *Reader) handleMessage(_ paho.Client, msg paho.Message) {
	if err := readers.Forward(r.ctx, msg.Payload(), r.distributor); err != nil {
		r.logger.Warnw("dropping mqtt message", "reader", r.name, "topic", msg.Topic(), "error", err)
	}
}
