package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// PaymentRecorder stores a payment outcome on a booking.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, actor model.Actor, id, reference, status string) (*model.Booking, error)
}

// PaymentHandler applies PaymentStatusEvents.  Events are applied on
// behalf of the tenant named in the event.  When a Redis client is set,
// event ids are remembered for dedupTTL and redeliveries are skipped.
type PaymentHandler struct {
	recorder PaymentRecorder
	rdb      *redis.Client
	dedupTTL time.Duration
	log      *zap.Logger
}

func NewPaymentHandler(r PaymentRecorder, rdb *redis.Client, dedupTTL time.Duration, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &PaymentHandler{recorder: r, rdb: rdb, dedupTTL: dedupTTL, log: log}
}

// Handle is a Handler for the payment-status queue.
func (p *PaymentHandler) Handle(ctx context.Context, body []byte) error {
	var ev PaymentStatusEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == "" || ev.TenantID == "" || ev.PaymentStatus == "" {
		return fmt.Errorf("payment event %q: booking_id, tenant_id and payment_status are required", ev.EventID)
	}

	if ev.EventID != "" && p.rdb != nil {
		fresh, err := p.rdb.SetNX(ctx, "payment:event:"+ev.EventID, ev.BookingID, p.dedupTTL).Result()
		switch {
		case err != nil:
			p.log.Warn("payment: dedup check failed", zap.String("event_id", ev.EventID), zap.Error(err))
		case !fresh:
			p.log.Debug("payment: duplicate event skipped", zap.String("event_id", ev.EventID))
			return nil
		}
	}

	actor := model.Actor{TenantID: ev.TenantID}
	b, err := p.recorder.RecordPayment(ctx, actor, ev.BookingID, ev.PaymentReference, ev.PaymentStatus)
	if err != nil {
		if ev.EventID != "" && p.rdb != nil {
			_ = p.rdb.Del(context.WithoutCancel(ctx), "payment:event:"+ev.EventID).Err()
		}
		return fmt.Errorf("record payment for %s: %w", ev.BookingID, err)
	}
	p.log.Info("payment recorded",
		zap.String("booking_id", b.ID),
		zap.String("reference", b.Reference),
		zap.String("payment_status", b.Payment.Status))
	return nil
}
