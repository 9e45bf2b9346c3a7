package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateHumanID reports a collision on the human ticket identifier.
	ErrDuplicateHumanID = errors.New("duplicate ticket human id")
	// ErrStaleTicket reports that the ticket changed after it was read.
	ErrStaleTicket = errors.New("ticket modified concurrently")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
