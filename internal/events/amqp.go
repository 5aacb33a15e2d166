package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

// Exchange — имя direct-обменника, в который публикуются события; ключ маршрутизации — вид события.
const Exchange = "ledger.events"

// Channel — часть amqp.Channel, нужная публикатору.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher публикует события в RabbitMQ.
type AMQPPublisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   Channel
}

// Dial подключается к RabbitMQ, повторяя попытку retries раз с паузой delay,
// и объявляет обменник событий.
func Dial(url string, retries int, delay time.Duration) (*AMQPPublisher, error) {
	const op = "events.Dial"

	var (
		conn *amqp.Connection
		err  error
	)
	retries = max(retries, 1)
	for i := 0; i < retries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		time.Sleep(delay)
	}
	if conn == nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: open channel: %w", op, err)
	}

	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: declare exchange: %w", op, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch}, nil
}

// NewAMQPPublisher оборачивает уже открытый канал.
func NewAMQPPublisher(ch Channel) *AMQPPublisher {
	return &AMQPPublisher{ch: ch}
}

// Publish отправляет события как persistent JSON-сообщения.
func (p *AMQPPublisher) Publish(ctx context.Context, evs []model.Event) error {
	const op = "events.Publish"

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range evs {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		err = p.ch.Publish(Exchange, string(ev.Kind), false, false, amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    ev.ID.String(),
			Timestamp:    ev.CreatedAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
