/*
Package mq bridges routed realtime events onto a RabbitMQ topic exchange so
out-of-process consumers (push-notification workers, sibling instances) can
observe the fan-out.  Publishing is best-effort: a broker hiccup is logged
and the event is lost for external consumers, never for connected clients.
*/
package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange every routed event is published to, with
// routing keys user.<id>, room.<id> or broadcast.
const Exchange = "chat.events"

const publishTimeout = 5 * time.Second

/*
Dialer wraps a single AMQP connection.  One connection is shared by the whole
process to save broker resources; publishers open their own channels from it.
*/
type Dialer struct {
	conn *amqp091.Connection
}

func NewDialer(url string) (*Dialer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
	}
	return &Dialer{conn: conn}, nil
}

func (d *Dialer) Close() error {
	return d.conn.Close()
}

/*
Publisher owns one channel on which it declares the topic exchange and
publishes routed events.  It implements the router's Bridge interface.
*/
type Publisher struct {
	channel *amqp091.Channel
	log     *slog.Logger
}

func NewPublisher(d *Dialer, log *slog.Logger) (*Publisher, error) {
	ch, err := d.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening AMQP channel: %w", err)
	}

	err = ch.ExchangeDeclare(Exchange, "topic", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declaring exchange %q: %w", Exchange, err)
	}

	return &Publisher{channel: ch, log: log}, nil
}

/*
Publish sends one routed event to the exchange.  Waits up to five seconds;
failures are logged and swallowed so a slow broker can never stall event
routing.
*/
func (p *Publisher) Publish(routingKey string, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := p.channel.PublishWithContext(
		ctx,
		Exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			Body:        raw,
			ContentType: "application/json",
		},
	)
	if err != nil {
		p.log.Warn("cannot publish event", "routing_key", routingKey, "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}
