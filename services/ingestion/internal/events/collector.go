package events

import (
	"context"
	"sync"

	"jobtrends/common/errors"
	"jobtrends/common/telemetry"
	"jobtrends/services/ingestion/internal/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("ingestion/events")

// Collector buffers raw postings received on the intake subject until the
// scheduler drains them as one batch.
type Collector struct {
	logger    *zap.Logger
	nc        *nats.Conn
	subject   string
	queue     string
	batchSize int

	mu      sync.Mutex
	pending []models.RawPosting
	ready   chan struct{}
	sub     *nats.Subscription
}

func NewCollector(logger *zap.Logger, nc *nats.Conn, subject, queue string, batchSize int) *Collector {
	return &Collector{
		logger:    logger,
		nc:        nc,
		subject:   subject,
		queue:     queue,
		batchSize: batchSize,
		ready:     make(chan struct{}, 1),
	}
}

func (c *Collector) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := c.nc.QueueSubscribe(c.subject, c.queue, c.handleRawPostings)
	if err != nil {
		return errors.Unavailable("subscribe to "+c.subject, err)
	}

	c.sub = sub
	c.logger.Info("registered nats subscriptions", zap.String("subject", c.subject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.sub.Unsubscribe()
		},
	})
	return nil
}

func (c *Collector) handleRawPostings(msg *nats.Msg) {
	_, span := tracer.Start(context.Background(), "handleRawPostings")
	defer span.End()

	if err := c.Add(msg.Data); err != nil {
		span.RecordError(err)
		c.logger.Error("failed to decode raw postings",
			zap.Error(err),
			zap.String("subject", msg.Subject))
		return
	}
}

// Add decodes one message body and buffers its postings.
func (c *Collector) Add(data []byte) error {
	postings, err := models.DecodeRawPostings(data)
	if err != nil {
		return errors.InvalidInput("raw posting payload", err)
	}
	if len(postings) == 0 {
		return nil
	}

	c.mu.Lock()
	c.pending = append(c.pending, postings...)
	full := c.batchSize > 0 && len(c.pending) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.ready <- struct{}{}:
		default:
		}
	}
	return nil
}

// Ready fires when the buffer reaches the batch size.
func (c *Collector) Ready() <-chan struct{} {
	return c.ready
}

func (c *Collector) Drain() []models.RawPosting {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// Requeue puts a batch that failed to ingest back in front of the buffer so
// the next flush retries it. It does not signal Ready; the next tick does.
func (c *Collector) Requeue(batch []models.RawPosting) {
	if len(batch) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(append(make([]models.RawPosting, 0, len(batch)+len(c.pending)), batch...), c.pending...)
}

func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
