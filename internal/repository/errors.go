package repository

import (
	"errors"
	"fmt"

	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/jackc/pgx/v5"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// notFound maps pgx.ErrNoRows to an obligation not-found error.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return obligation.NotFoundError(format, args...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
