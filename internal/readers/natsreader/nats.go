// Package natsreader subscribes to a NATS subject carrying JSON TPMS readings.
package natsreader

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/lantern/internal/readers"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Reader receives readings from a NATS subject, optionally as part of a queue group
type Reader struct {
	ctx         context.Context
	name        string
	cfg         config.NATSData
	distributor chan<- types.Reading
	logger      *zap.SugaredLogger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// New creates a NATS reader. The connection is made by StartReader.
func New(ctx context.Context, name string, cfg *config.NATSData, distributor chan<- types.Reading, logger *zap.SugaredLogger) (*Reader, error) {
	if cfg == nil || cfg.URL == "" || cfg.Subject == "" {
		return nil, fmt.Errorf("reader %s: nats needs a url and a subject", name)
	}
	return &Reader{
		ctx:         ctx,
		name:        name,
		cfg:         *cfg,
		distributor: distributor,
		logger:      logger,
	}, nil
}

func (r *Reader) ReaderName() string {
	return r.name
}

// StartReader connects and subscribes
func (r *Reader) StartReader() error {
	r.logger.Infof("connecting nats reader [%s] to %s", r.name, r.cfg.URL)
	nc, err := nats.Connect(r.cfg.URL,
		nats.Name("lantern-"+r.name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				r.logger.Warnf("nats reader [%s] disconnected: %v", r.name, err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			r.logger.Infof("nats reader [%s] reconnected to %s", r.name, nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats reader %s: connect: %w", r.name, err)
	}

	var sub *nats.Subscription
	if r.cfg.Queue != "" {
		sub, err = nc.QueueSubscribe(r.cfg.Subject, r.cfg.Queue, r.handleMessage)
	} else {
		sub, err = nc.Subscribe(r.cfg.Subject, r.handleMessage)
	}
	if err != nil {
		nc.Close()
		return fmt.Errorf("nats reader %s: subscribe to %s: %w", r.name, r.cfg.Subject, err)
	}

	r.mu.Lock()
	r.conn, r.sub = nc, sub
	r.mu.Unlock()

	r.logger.Infof("nats reader [%s] subscribed to %s", r.name, r.cfg.Subject)
	return nil
}

// StopReader drains the subscription and closes the connection
func (r *Reader) StopReader() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	err := r.conn.Drain()
	r.conn, r.sub = nil, nil
	return err
}

func (r *Reader) handleMessage(msg *nats.Msg) {
	if err := readers.Forward(r.ctx, msg.Data, r.distributor); err != nil {
		r.logger.Warnw("dropping nats message", "reader", r.name, "subject", msg.Subject, "error", err)
	}
}
