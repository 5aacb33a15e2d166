package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type stubChannel struct {
	published []published
	err       error
	closed    bool
}

func (c *stubChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *stubChannel) Close() error {
	c.closed = true
	return nil
}

func testEvent() model.Event {
	return model.Event{
		ID:        uuid.New(),
		Kind:      model.EventDeposit,
		Identity:  "alice",
		Amount:    100,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &stubChannel{}
	p := NewAMQPPublisher(ch)
	ev := testEvent()

	require.NoError(t, p.Publish(context.Background(), []model.Event{ev}))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, Exchange, got.exchange)
	assert.Equal(t, "deposit", got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, ev.ID.String(), got.msg.MessageId)

	var decoded model.Event
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, model.Amount(100), decoded.Amount)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	errBroker := errors.New("channel closed")
	p := NewAMQPPublisher(&stubChannel{err: errBroker})

	err := p.Publish(context.Background(), []model.Event{testEvent()})
	assert.ErrorIs(t, err, errBroker)
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &stubChannel{}
	require.NoError(t, NewAMQPPublisher(ch).Close())
	assert.True(t, ch.closed)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), []model.Event{testEvent(), testEvent()}))

	entries := logs.FilterMessage("ledger event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "deposit", entries[0].ContextMap()["kind"])
	assert.Equal(t, "1.00", entries[0].ContextMap()["amount"])
}
