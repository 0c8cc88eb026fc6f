// Package events bridges the in-process event bus onto NATS so companion
// services (audio pipeline, trip journal) can consume guide notifications.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/pkg/bus"
)

const (
	SubjectRegion    = "loci.guide.region"
	SubjectVisit     = "loci.guide.visit"
	SubjectScheduler = "loci.guide.scheduler"
)

// Connect dials the NATS server with the reconnect behaviour the bridge
// expects.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}
	return nc, nil
}

// Bridge forwards bus events to NATS subjects as JSON.
type Bridge struct {
	nc     *nats.Conn
	sub    *bus.Subscription
	done   chan struct{}
	logger *zap.Logger
}

// NewBridge subscribes to the bus and starts forwarding.
func NewBridge(nc *nats.Conn, events *bus.Bus, logger *zap.Logger) *Bridge {
	b := &Bridge{
		nc:     nc,
		sub:    events.Subscribe(),
		done:   make(chan struct{}),
		logger: logger,
	}
	go b.forward()
	return b
}

// Close stops forwarding and detaches from the bus. The NATS connection is
// owned by the caller.
func (b *Bridge) Close() {
	b.sub.Close()
	<-b.done
}

func (b *Bridge) forward() {
	defer close(b.done)
	for e := range b.sub.C {
		switch {
		case e.Region != nil:
			b.publish(SubjectRegion, e.Region)
		case e.Visit != nil:
			b.publish(SubjectVisit, e.Visit)
		case e.Scheduler != nil:
			b.publish(SubjectScheduler, e.Scheduler)
		}
	}
}

func (b *Bridge) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("failed to marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := b.nc.Publish(subject, data); err != nil {
		b.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
