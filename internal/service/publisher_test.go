package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/reservation-engine/internal/queue"
)

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failNext  bool
	closed    bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name+"/"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.failNext {
		f.failNext = false
		return errors.New("channel closed")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func newTestPublisher() (*Publisher, *[]*fakeChannel) {
	var opened []*fakeChannel
	p := NewPublisher("amqp://test", "reservations.events", nil)
	p.dial = func(string) (channel, func() error, error) {
		ch := &fakeChannel{}
		opened = append(opened, ch)
		return ch, func() error { return nil }, nil
	}
	return p, &opened
}

func TestPublishRoutesByEventName(t *testing.T) {
	p, opened := newTestPublisher()
	ev := queue.BookingEvent{Event: queue.EventConfirmed, BookingID: "b1", Reference: "ACCt1ABCDEFGH", Total: "300.00"}

	require.NoError(t, p.Publish(context.Background(), ev))
	require.NoError(t, p.Publish(context.Background(), queue.BookingEvent{Event: queue.EventCancelled, BookingID: "b1"}))

	require.Len(t, *opened, 1, "connection is reused")
	ch := (*opened)[0]
	assert.Equal(t, []string{"reservations.events/topic"}, ch.declared)
	assert.Equal(t, []string{"booking.confirmed", "booking.cancelled"}, ch.keys)

	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.NotEmpty(t, msg.MessageId)
	var got queue.BookingEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, ev, got)
}

func TestPublishRedialsAfterFailure(t *testing.T) {
	p, opened := newTestPublisher()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Publish(ctx, queue.BookingEvent{Event: queue.EventCreated}))
	(*opened)[0].failNext = true

	assert.Error(t, p.Publish(ctx, queue.BookingEvent{Event: queue.EventConfirmed}))
	assert.True(t, (*opened)[0].closed)

	require.NoError(t, p.Publish(ctx, queue.BookingEvent{Event: queue.EventConfirmed}))
	assert.Len(t, *opened, 2)
}

func TestPublishReportsDialError(t *testing.T) {
	p := NewPublisher("amqp://test", "x", nil)
	p.dial = func(string) (channel, func() error, error) { return nil, nil, errors.New("refused") }
	assert.ErrorContains(t, p.Publish(context.Background(), queue.BookingEvent{Event: queue.EventCreated}), "refused")
}
