package messaging

import (
	"context"
	"encoding/json"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/telemetry"
	"jobtrends/services/ingestion/internal/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("ingestion/messaging")

const DefaultPersistedSubject = "postings.persisted"

// Connect opens a NATS connection that reconnects forever.
func Connect(url string, timeout time.Duration, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}
	return conn, nil
}

type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewPublisher(logger *zap.Logger, conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultPersistedSubject
	}
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

func (p *Publisher) PublishPersisted(ctx context.Context, posting models.PersistedPosting) error {
	_, span := tracer.Start(ctx, "PublishPersisted")
	defer span.End()

	data, err := json.Marshal(posting)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling persisted posting", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", p.subject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(p.subject, data); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to publish persisted posting",
			zap.String("posting_hash", posting.PostingHash),
			zap.Error(err))
		return errors.Unavailable("publishing to NATS", err)
	}

	p.logger.Debug("published persisted posting",
		zap.String("posting_hash", posting.PostingHash),
		zap.String("status", posting.Status),
		zap.String("subject", p.subject))
	return nil
}
