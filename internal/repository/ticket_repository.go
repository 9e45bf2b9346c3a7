package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/facility-desk/internal/domain"
)

const ticketHumanIDConstraint = "tickets_human_id_key"

var ticketColumns = []string{
	"id", "human_id", "requester_id", "area_id", "technician_id",
	"title", "description", "location", "equipment", "model", "asset_tag",
	"status", "priority", "satisfaction_rating", "sla_deadline", "resolved_at",
	"created_at", "updated_at",
}

// TicketFilter narrows ticket listings. Empty slices and nil pointers do not
// restrict.
type TicketFilter struct {
	RequesterID  *string
	TechnicianID *string
	AreaIDs      []string
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	SearchTerm   *string
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ApplyTransition stores after and its history entries atomically. It
	// fails with ErrStaleTicket when the stored row no longer matches
	// expectedUpdatedAt.
	ApplyTransition(ctx context.Context, after *domain.Ticket, expectedUpdatedAt time.Time, history []domain.TicketHistory) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	query, args, err := psql.
		Insert("tickets").
		Columns(
			"human_id", "requester_id", "area_id", "technician_id",
			"title", "description", "location", "equipment", "model", "asset_tag",
			"status", "priority", "sla_deadline", "created_at", "updated_at",
		).
		Values(
			ticket.HumanID, ticket.RequesterID, ticket.AreaID, ticket.TechnicianID,
			ticket.Title, ticket.Description, ticket.Location, ticket.Equipment, ticket.Model, ticket.AssetTag,
			ticket.Status, ticket.Priority, ticket.SLADeadline, ticket.CreatedAt, ticket.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build ticket insert: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&ticket.ID); err != nil {
		if isUniqueViolation(err, ticketHumanIDConstraint) {
			return ErrDuplicateHumanID
		}
		return err
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query, args, err := psql.
		Select(ticketColumns...).
		From("tickets").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ticket select: %w", err)
	}
	return scanTicket(r.pool.QueryRow(ctx, query, args...))
}

func (r *ticketRepository) ApplyTransition(ctx context.Context, after *domain.Ticket, expectedUpdatedAt time.Time, history []domain.TicketHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query, args, err := psql.
		Update("tickets").
		Set("area_id", after.AreaID).
		Set("technician_id", after.TechnicianID).
		Set("status", after.Status).
		Set("priority", after.Priority).
		Set("sla_deadline", after.SLADeadline).
		Set("resolved_at", after.ResolvedAt).
		Set("updated_at", after.UpdatedAt).
		Where(sq.Eq{"id": after.ID, "updated_at": expectedUpdatedAt}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build ticket update: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, after.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrStaleTicket
	}

	for i := range history {
		if err := insertHistory(ctx, tx, &history[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.TicketHistory) error {
	oldValue, err := json.Marshal(entry.OldValue)
	if err != nil {
		return fmt.Errorf("encode history old value: %w", err)
	}
	newValue, err := json.Marshal(entry.NewValue)
	if err != nil {
		return fmt.Errorf("encode history new value: %w", err)
	}

	query, args, err := psql.
		Insert("ticket_history").
		Columns("ticket_id", "changed_by_id", "change_type", "old_value", "new_value", "created_at").
		Values(entry.TicketID, entry.ChangedByID, entry.ChangeType, oldValue, newValue, entry.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	qb := psql.Select(ticketColumns...).From("tickets")

	if filter.RequesterID != nil {
		qb = qb.Where(sq.Eq{"requester_id": *filter.RequesterID})
	}
	if filter.TechnicianID != nil {
		qb = qb.Where(sq.Eq{"technician_id": *filter.TechnicianID})
	}
	if len(filter.AreaIDs) > 0 {
		qb = qb.Where(sq.Eq{"area_id": filter.AreaIDs})
	}
	if len(filter.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.Priorities) > 0 {
		qb = qb.Where(sq.Eq{"priority": filter.Priorities})
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.TrimSpace(*filter.SearchTerm) + "%"
		qb = qb.Where(sq.Or{
			sq.ILike{"title": search},
			sq.ILike{"description": search},
			sq.ILike{"human_id": search},
		})
	}

	qb = qb.OrderBy("created_at DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ticket list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.HumanID,
		&ticket.RequesterID,
		&ticket.AreaID,
		&ticket.TechnicianID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Location,
		&ticket.Equipment,
		&ticket.Model,
		&ticket.AssetTag,
		&ticket.Status,
		&ticket.Priority,
		&ticket.SatisfactionRating,
		&ticket.SLADeadline,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return &ticket, nil
}
