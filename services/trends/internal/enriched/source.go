package enriched

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/telemetry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("trends/enriched")

var identifierSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source supplies the enriched postings processed within [from, to).
type Source interface {
	Window(ctx context.Context, from, to time.Time) ([]Posting, error)
}

type Tables struct {
	Jobs             string
	JobsTechnologies string
	Technologies     string
}

func DefaultTables() Tables {
	return Tables{
		Jobs:             "jobs",
		JobsTechnologies: "jobs_technologies",
		Technologies:     "technologies",
	}
}

// Identifier validates a possibly schema-qualified table name and quotes it.
func Identifier(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.InvalidInput("table identifier cannot be empty", nil)
	}
	parts := strings.Split(trimmed, ".")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
		if !identifierSegment.MatchString(parts[i]) {
			return "", errors.InvalidInput(fmt.Sprintf("invalid table identifier segment %q in %q", parts[i], name), nil)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

type PostgresSource struct {
	pool   *pgxpool.Pool
	query  string
	logger *zap.Logger
}

func NewPostgresSource(pool *pgxpool.Pool, tables Tables, logger *zap.Logger) (*PostgresSource, error) {
	jobs, err := Identifier(tables.Jobs)
	if err != nil {
		return nil, err
	}
	jobsTech, err := Identifier(tables.JobsTechnologies)
	if err != nil {
		return nil, err
	}
	tech, err := Identifier(tables.Technologies)
	if err != nil {
		return nil, err
	}

	return &PostgresSource{
		pool:   pool,
		query:  windowQuery(jobs, jobsTech, tech),
		logger: logger,
	}, nil
}

func windowQuery(jobs, jobsTech, tech string) string {
	return fmt.Sprintf(`
		SELECT
			j.id,
			j.dynamo_id,
			j.job_title,
			j.location,
			j.remote_status,
			j.seniority_level,
			j.salary_mentioned,
			j.minimum_salary,
			j.maximum_salary,
			j.processed_date,
			COALESCE(
				ARRAY_AGG(DISTINCT t.name) FILTER (WHERE t.name IS NOT NULL),
				'{}'
			) AS technologies
		FROM %s j
		LEFT JOIN %s jt ON jt.job_id = j.id
		LEFT JOIN %s t ON t.id = jt.technology_id
		WHERE j.processed_date >= $1 AND j.processed_date < $2
		GROUP BY
			j.id, j.dynamo_id, j.job_title, j.location, j.remote_status,
			j.seniority_level, j.salary_mentioned, j.minimum_salary,
			j.maximum_salary, j.processed_date
		ORDER BY j.processed_date, j.id
	`, jobs, jobsTech, tech)
}

func (s *PostgresSource) Window(ctx context.Context, from, to time.Time) ([]Posting, error) {
	ctx, span := tracer.Start(ctx, "PostgresSource.Window")
	defer span.End()

	rows, err := s.pool.Query(ctx, s.query, from.UTC(), to.UTC())
	if err != nil {
		span.RecordError(err)
		return nil, Classify("querying enriched postings", err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		span.RecordError(err)
		return nil, Classify("reading enriched postings", err)
	}

	postings := make([]Posting, 0, len(maps))
	for _, m := range maps {
		postings = append(postings, FromMap(m))
	}

	span.SetAttributes(telemetry.Int("postings", len(postings)))
	s.logger.Debug("loaded enriched postings",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("count", len(postings)))
	return postings, nil
}
