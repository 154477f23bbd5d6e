package enriched

import (
	stderrors "errors"
	"strings"

	"jobtrends/common/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes with a specific classification. Everything else from the
// server or the network is treated as unavailable.
const (
	pgClassInvalidAuthorization = "28"
	pgErrTooManyConnections     = "53300"
	pgErrUndefinedTable         = "42P01"
	pgErrUndefinedColumn        = "42703"
)

// Classify maps a pgx failure onto the domain error taxonomy.
func Classify(message string, err error) *errors.DomainError {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return errors.Unavailable(message, err)
	}

	switch {
	case strings.HasPrefix(pgErr.Code, pgClassInvalidAuthorization):
		return errors.Unauthorized(message, err)
	case pgErr.Code == pgErrTooManyConnections:
		return errors.RateLimit(message, err)
	case pgErr.Code == pgErrUndefinedTable:
		return errors.NotFound(message, err)
	case pgErr.Code == pgErrUndefinedColumn:
		return errors.InvalidInput(message, err)
	default:
		return errors.Unavailable(message, err)
	}
}
