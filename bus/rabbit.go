package bus

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"go.mozilla.org/autoland/faults"
)

// Bus is the durable AMQP bus client shared by the orchestrator and pusher.
// It owns one connection/channel pair and one direct exchange, grounded on
// the teacher's RabbitMQService connection-and-declare sequence
// (queue/rabbit.go), generalized from a single named queue to the
// exchange + two-routing-key topology of spec.md §6.
type Bus struct {
	conn     AMQPConnection
	channel  AMQPChannel
	exchange string
}

// Dial connects to url, opens a channel, and declares the durable direct
// exchange. Queue declaration/binding happens per-queue via DeclareQueue.
func Dial(url, exchange string, dialer AMQPDialer) (*Bus, error) {
	conn, err := dialer.Dial(url)
	if err != nil {
		return nil, faults.New(faults.Transient, "bus.Dial", fmt.Errorf("connect: %w", err))
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, faults.New(faults.Transient, "bus.Dial", fmt.Errorf("open channel: %w", err))
	}
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, faults.New(faults.Transient, "bus.Dial", fmt.Errorf("declare exchange: %w", err))
	}
	return &Bus{conn: conn, channel: ch, exchange: exchange}, nil
}

// DeclareQueue declares a durable queue and binds it to routingKey on the
// bus's exchange.
func (b *Bus) DeclareQueue(name, routingKey string) error {
	if _, err := b.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return faults.New(faults.Transient, "bus.DeclareQueue", err)
	}
	if err := b.channel.QueueBind(name, routingKey, b.exchange, false, nil); err != nil {
		return faults.New(faults.Transient, "bus.DeclareQueue", err)
	}
	return nil
}

// Publish marshals payload into an Envelope and publishes it as a
// persistent message to routingKey.
func (b *Bus) Publish(routingKey string, payload interface{}) error {
	env := Envelope{
		Meta:    Meta{RoutingKey: routingKey, Exchange: b.exchange},
		Payload: payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return faults.New(faults.InvalidInput, "bus.Publish", err)
	}
	err = b.channel.Publish(b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return faults.New(faults.Transient, "bus.Publish", err)
	}
	return nil
}

// Consume starts an explicit-ack consumer on queue with prefetch=1, matching
// the pusher's "one job in flight per lock holder" discipline (spec.md §9).
func (b *Bus) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	if err := b.channel.Qos(1, 0, false); err != nil {
		return nil, faults.New(faults.Transient, "bus.Consume", err)
	}
	deliveries, err := b.channel.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, faults.New(faults.Transient, "bus.Consume", err)
	}
	return deliveries, nil
}

// Purge drains queue and returns the number of messages removed, used by
// the --purge-queue CLI flag (spec.md §6).
func (b *Bus) Purge(queue string) (int, error) {
	n, err := b.channel.QueuePurge(queue, false)
	if err != nil {
		return 0, faults.New(faults.Transient, "bus.Purge", err)
	}
	return n, nil
}

// Close releases the channel and connection.
func (b *Bus) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// DecodeJob unmarshals a delivery body's payload into a Job.
func DecodeJob(body []byte) (Job, error) {
	var env struct {
		Payload Job `json:"payload"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return Job{}, faults.New(faults.InvalidInput, "bus.DecodeJob", err)
	}
	return env.Payload, nil
}

// DecodeResult unmarshals a delivery body's payload into a Result.
func DecodeResult(body []byte) (Result, error) {
	var env struct {
		Payload Result `json:"payload"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, faults.New(faults.InvalidInput, "bus.DecodeResult", err)
	}
	return env.Payload, nil
}
