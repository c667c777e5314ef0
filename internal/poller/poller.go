package poller

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/clambin/zoned/internal/mqtt"
	"github.com/clambin/zoned/pkg/pubsub"
)

type Poller interface {
	Subscribe() chan Update
	Unsubscribe(ch chan Update)
	Refresh()
}

// MQTTClient subscribes the poller to the broker's device topics.
type MQTTClient interface {
	Subscribe(topic string, handler mqtt.MessageHandler)
}

var _ Poller = &MQTTPoller{}

// MQTTPoller maintains a snapshot of all device states seen on the broker
// and publishes a consolidated Update whenever a device attribute changes.
// The first Update is held back for a warm-up period, so the flood of
// retained messages received on connect coalesces into a single snapshot.
type MQTTPoller struct {
	*pubsub.Publisher[Update]
	client    MQTTClient
	baseTopic string
	warmup    time.Duration
	logger    *slog.Logger
	refresh   chan struct{}
	messages  chan message
	devices   map[string]Device
}

type message struct {
	topic   string
	payload []byte
}

func New(client MQTTClient, baseTopic string, warmup time.Duration, logger *slog.Logger) *MQTTPoller {
	return &MQTTPoller{
		Publisher: pubsub.New[Update](logger.With(slog.String("component", "registry"))),
		client:    client,
		baseTopic: baseTopic,
		warmup:    warmup,
		logger:    logger,
		refresh:   make(chan struct{}, 1),
		messages:  make(chan message, 256),
		devices:   make(map[string]Device),
	}
}

func (p *MQTTPoller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("warmup", p.warmup))
	defer p.logger.Debug("stopped")

	p.client.Subscribe(mqtt.StatesTopic(p.baseTopic), p.enqueue)
	p.client.Subscribe(mqtt.AvailabilityTopic(p.baseTopic), p.enqueue)

	warmup := time.NewTimer(p.warmup)
	defer warmup.Stop()
	var ready bool

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-warmup.C:
			ready = true
			p.publish()
		case msg := <-p.messages:
			if p.process(msg) && ready {
				p.publish()
			}
		case <-p.refresh:
			ready = true
			p.publish()
		}
	}
}

// Refresh forces an immediate publication of the current snapshot. It never
// blocks; a refresh already in flight covers the request.
func (p *MQTTPoller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *MQTTPoller) enqueue(topic string, payload []byte) {
	p.messages <- message{topic: topic, payload: payload}
}

// process merges one broker message into the device snapshot and reports
// whether the snapshot changed.
func (p *MQTTPoller) process(msg message) bool {
	id, availability, ok := mqtt.ParseTopic(p.baseTopic, msg.topic)
	if !ok {
		return false
	}
	device := p.devices[id]
	var changed bool
	if availability {
		changed = device.applyAvailability(msg.payload)
	} else {
		var err error
		changed, err = device.applyState(msg.payload, time.Now())
		if err != nil {
			p.logger.Warn("failed to parse device state", slog.String("device", id), slog.Any("err", err))
			return false
		}
	}
	p.devices[id] = device
	return changed
}

func (p *MQTTPoller) publish() {
	update := Update{Timestamp: time.Now(), Devices: make(map[string]Device, len(p.devices))}
	maps.Copy(update.Devices, p.devices)
	p.Publisher.Publish(update)
	p.logger.Debug("update published", slog.Int("devices", len(update.Devices)))
}
