package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aq2208/stitch-order-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange   = "stitch.order.events"
	DefaultRoutingKey = "order.status.changed"
)

// Topology names the exchange, routing key and an optional durable queue
// bound to it so notifications survive until a consumer attaches.
type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

func (t Topology) withDefaults() Topology {
	if t.Exchange == "" {
		t.Exchange = DefaultExchange
	}
	if t.RoutingKey == "" {
		t.RoutingKey = DefaultRoutingKey
	}
	return t
}

// RabbitPublisher implements usecase.EventPublisher. Publishes wait for the
// broker confirm.
type RabbitPublisher struct {
	mu   sync.Mutex
	ch   *amqp.Channel
	topo Topology
}

// NewRabbitPublisher declares the topology once at startup.
func NewRabbitPublisher(ch *amqp.Channel, topo Topology) (*RabbitPublisher, error) {
	topo = topo.withDefaults()
	if err := ch.ExchangeDeclare(
		topo.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if topo.Queue != "" {
		q, err := ch.QueueDeclare(topo.Queue, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("declare queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, topo.RoutingKey, topo.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("queue bind: %w", err)
		}
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitPublisher{ch: ch, topo: topo}, nil
}

func (p *RabbitPublisher) PublishStatusChanged(ctx context.Context, msg usecase.StatusChangedMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.OrderID + ":" + msg.To,
		Timestamp:    msg.At,
		Type:         p.topo.RoutingKey,
		Body:         body,
	}

	p.mu.Lock()
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.topo.Exchange, p.topo.RoutingKey, false, false, pub)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("publish %s: broker nacked", msg.OrderID)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitPublisher)(nil)
