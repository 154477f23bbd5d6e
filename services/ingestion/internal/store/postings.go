package store

import (
	"context"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/telemetry"
	"jobtrends/services/ingestion/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// postingNamespace scopes posting ids so one hash always maps to one row id.
var postingNamespace = uuid.MustParse("6f1d3c1e-5a63-4f0b-9b54-3b7c0e0d2a11")

const insertPostings = `INSERT INTO postings (
	id, posting_hash, description_sig, source, source_type, original_url,
	company, title, location_token, city, region, country, location_raw,
	posted_date, description, status, fetched_at, updated_at, raw_data
)`

func PostingID(hash string) uuid.UUID {
	return uuid.NewSHA1(postingNamespace, []byte(hash))
}

// PostingSink writes persisted postings to the analytical store.
type PostingSink struct {
	conn   clickhouse.Conn
	logger *zap.Logger
}

func NewPostingSink(conn clickhouse.Conn, logger *zap.Logger) *PostingSink {
	return &PostingSink{conn: conn, logger: logger}
}

func (s *PostingSink) Insert(ctx context.Context, postings []models.PersistedPosting) error {
	ctx, span := tracer.Start(ctx, "PostingSink.Insert")
	defer span.End()
	span.SetAttributes(telemetry.Int("postings", len(postings)))

	if len(postings) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, insertPostings)
	if err != nil {
		span.RecordError(err)
		return errors.Unavailable("preparing postings batch", err)
	}

	now := time.Now().UTC()
	for _, p := range postings {
		raw, err := p.MarshalBinary()
		if err != nil {
			return errors.Internal("encoding posting", err)
		}

		if err := batch.Append(
			PostingID(p.PostingHash),
			p.PostingHash,
			p.DescriptionSig,
			p.Source,
			p.SourceType,
			p.OriginalURL,
			p.Canonical.Company,
			p.Canonical.Title,
			p.Canonical.Location.Token,
			p.Canonical.Location.City,
			p.Canonical.Location.Region,
			p.Canonical.Location.Country,
			p.Location.Raw,
			p.Canonical.PostedDate,
			p.Description,
			p.Status,
			p.FetchedAt.UTC(),
			now,
			string(raw),
		); err != nil {
			span.RecordError(err)
			return errors.Internal("appending posting "+p.PostingHash, err)
		}
	}

	if err := batch.Send(); err != nil {
		span.RecordError(err)
		return errors.Unavailable("sending postings batch", err)
	}

	s.logger.Debug("stored postings", zap.Int("count", len(postings)))
	return nil
}
