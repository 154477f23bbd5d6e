package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/kv"
	"jobtrends/common/telemetry"
	"jobtrends/services/ingestion/internal/models"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("ingestion/store")

const (
	fieldDescriptionSig = "description_sig"
	fieldDescription    = "description"
)

// SourceRef is one provider sighting of a posting.
type SourceRef struct {
	Source      string    `json:"source"`
	OriginalURL string    `json:"originalUrl,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Record is the stored identity of a posting keyed by its hash.
type Record struct {
	PostingHash    string
	Fields         map[string]string
	DescriptionSig string
	Sources        []SourceRef
}

type IdentityStore struct {
	kv     kv.Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewIdentityStore(store kv.Store, ttl time.Duration, logger *zap.Logger) *IdentityStore {
	return &IdentityStore{kv: store, ttl: ttl, logger: logger}
}

// Signatures returns the stored description signature for every hash that
// has a record. Hashes without a record are absent from the result.
func (s *IdentityStore) Signatures(ctx context.Context, hashes []string) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "IdentityStore.Signatures")
	defer span.End()
	span.SetAttributes(telemetry.Int("hashes", len(hashes)))

	sigs, err := s.kv.GetField(ctx, hashes, fieldDescriptionSig)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("identity lookup failed", err)
	}
	return sigs, nil
}

// Upsert merges a posting into its identity record. Identity fields keep
// their first written value, the description is replaced when the posting
// carries one and every call appends a source reference.
func (s *IdentityStore) Upsert(ctx context.Context, p models.CanonicalPosting) (bool, error) {
	ctx, span := tracer.Start(ctx, "IdentityStore.Upsert")
	defer span.End()

	if p.PostingHash == "" {
		return false, errors.InvalidInput("posting has no hash", kv.ErrInvalidKey)
	}

	ref, err := json.Marshal(SourceRef{
		Source:      p.Source,
		OriginalURL: p.OriginalURL,
		FetchedAt:   p.FetchedAt.UTC(),
	})
	if err != nil {
		return false, errors.Internal("encoding source reference", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	m := kv.Merge{
		SetIfAbsent: map[string]string{
			"company":           p.Canonical.Company,
			"title":             p.Canonical.Title,
			"posted_date":       p.Canonical.PostedDate,
			"location_token":    p.Canonical.Location.Token,
			"city":              p.Canonical.Location.City,
			"region":            p.Canonical.Location.Region,
			"country":           p.Canonical.Location.Country,
			"location_raw":      p.Location.Raw,
			"first_source":      p.Source,
			"first_seen_at":     now,
			fieldDescriptionSig: p.DescriptionSig,
		},
		Set: map[string]string{
			"last_seen_at": now,
		},
		Append: []string{string(ref)},
		TTL:    s.ttl,
	}
	if p.Description != "" {
		m.Set[fieldDescription] = p.Description
		m.Set[fieldDescriptionSig] = p.DescriptionSig
	}

	created, err := s.kv.Merge(ctx, p.PostingHash, m)
	if err != nil {
		span.RecordError(err)
		return false, errors.Unavailable("identity upsert failed", err)
	}

	span.SetAttributes(telemetry.Bool("created", created))
	return created, nil
}

func (s *IdentityStore) Get(ctx context.Context, hash string) (*Record, error) {
	fields, err := s.kv.GetAll(ctx, hash)
	if err != nil {
		if stderrors.Is(err, kv.ErrNotFound) {
			return nil, errors.NotFound("posting "+hash, err)
		}
		return nil, errors.Unavailable("identity read failed", err)
	}

	entries, err := s.kv.List(ctx, hash)
	if err != nil {
		return nil, errors.Unavailable("identity sources read failed", err)
	}

	rec := &Record{
		PostingHash:    hash,
		Fields:         fields,
		DescriptionSig: fields[fieldDescriptionSig],
	}
	for _, entry := range entries {
		var ref SourceRef
		if err := json.Unmarshal([]byte(entry), &ref); err != nil {
			s.logger.Warn("skipping malformed source reference",
				zap.String("posting_hash", hash),
				zap.Error(err))
			continue
		}
		rec.Sources = append(rec.Sources, ref)
	}
	return rec, nil
}
