package repository

import sq "github.com/Masterminds/squirrel"

// psql is the shared statement builder configured for PostgreSQL placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
