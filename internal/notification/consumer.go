package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"go.uber.org/zap"
)

// MessageReader is the consumer-group surface of *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Backoff between attempts at an event that failed to handle.
var (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

// Consume reads visit events until ctx is cancelled. A message is committed
// only once handled. An event that fails is retried with backoff before the
// next message is fetched, since committing a later offset would also commit
// past it. Malformed payloads are committed and skipped so they cannot block
// the partition.
func Consume(ctx context.Context, r MessageReader, svc Service, logger *zap.Logger) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var e visit.Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			logger.Warn("skipping malformed visit event",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		} else if !handleWithRetry(ctx, svc, e, msg, logger) {
			// Stopped mid-retry; the group redelivers from this offset.
			return nil
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("commit visit event", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handleWithRetry returns false only when ctx ends before e is handled.
func handleWithRetry(ctx context.Context, svc Service, e visit.Event, msg kafka.Message, logger *zap.Logger) bool {
	delay := retryBaseDelay
	for attempt := 1; ; attempt++ {
		err := svc.HandleVisitEvent(ctx, e)
		if err == nil {
			return true
		}
		logger.Error("handle visit event",
			zap.String("visit_id", e.VisitID),
			zap.String("type", string(e.Type)),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

// InProcessDeliveryTimeout bounds the handling of one event handed off by
// InProcessPublisher.
const InProcessDeliveryTimeout = 30 * time.Second

// InProcessPublisher hands events to the notification service on a
// background goroutine, detached from the request that produced them. It is
// used when no Kafka brokers are configured.
type InProcessPublisher struct {
	svc     Service
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInProcessPublisher(svc Service, logger *zap.Logger) *InProcessPublisher {
	return &InProcessPublisher{svc: svc, logger: logger, timeout: InProcessDeliveryTimeout}
}

func (p *InProcessPublisher) Publish(ctx context.Context, e visit.Event) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		if err := p.svc.HandleVisitEvent(ctx, e); err != nil {
			p.logger.Warn("deliver visit event",
				zap.String("visit_id", e.VisitID),
				zap.String("type", string(e.Type)),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every event handed off so far has been handled.
func (p *InProcessPublisher) Wait() {
	p.wg.Wait()
}
