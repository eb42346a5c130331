package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"inventory-sync/internal/core"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher announces committed sales on a topic exchange.
type Publisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	ch       Channel
	exchange string
}

var _ core.EventPublisher = (*Publisher)(nil)

func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// RoutingKey returns sale.synced.<storeId>, letting consumers bind per store.
func RoutingKey(storeID string) string {
	return "sale.synced." + storeID
}

func (p *Publisher) PublishSaleSynced(ctx context.Context, event core.SaleSynced) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal sale-synced event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx,
		p.exchange,                // exchange
		RoutingKey(event.StoreID), // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.SaleID,
			Timestamp:    time.Now().UTC(),
			Type:         "sale.synced",
			Body:         body,
		},
	)
}
