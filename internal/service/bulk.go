package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/domain"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

// BulkFailure is the structured outcome of one rejected ticket.
type BulkFailure struct {
	TicketID string         `json:"ticket_id"`
	Code     string         `json:"code"`
	Reason   string         `json:"reason,omitempty"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// BulkResult aggregates a bulk update. Applied tickets stay applied even when
// later ones fail or the deadline expires.
type BulkResult struct {
	Requested    int           `json:"requested"`
	Succeeded    int           `json:"succeeded"`
	Applied      []string      `json:"applied"`
	Failed       []BulkFailure `json:"failed"`
	NotAttempted []string      `json:"not_attempted"`
}

// BulkUpdateTickets applies the same change to every id, one ticket at a
// time, collecting per-ticket outcomes. Only malformed requests fail as a
// whole.
func (s *TicketService) BulkUpdateTickets(ctx context.Context, actor domain.Actor, ticketIDs []string, change domain.TicketChange) (*BulkResult, error) {
	ids := dedupeIDs(ticketIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("ids must name at least one ticket", nil)
	}
	if len(ids) > s.cfg.BulkMaxIDs {
		return nil, apperrors.NewValidationError("too many ids", map[string]any{"max": s.cfg.BulkMaxIDs, "got": len(ids)})
	}
	if change.IsEmpty() {
		return nil, apperrors.NewValidationError("change must name at least one field", nil)
	}

	if s.cfg.BulkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BulkTimeout)
		defer cancel()
	}

	result := &BulkResult{
		Requested:    len(ids),
		Applied:      []string{},
		Failed:       []BulkFailure{},
		NotAttempted: []string{},
	}

	for i, id := range ids {
		if ctx.Err() != nil {
			result.NotAttempted = append(result.NotAttempted, ids[i:]...)
			break
		}

		_, err := s.UpdateTicket(ctx, actor, id, change)
		if err == nil {
			result.Succeeded++
			result.Applied = append(result.Applied, id)
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result.Failed = append(result.Failed, interruptedFailure(id, err))
			result.NotAttempted = append(result.NotAttempted, ids[i+1:]...)
			break
		}
		result.Failed = append(result.Failed, toBulkFailure(id, err))
	}

	s.logger.Info("bulk update finished",
		zap.String("actor_id", actor.ID),
		zap.Int("requested", result.Requested),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failed)),
		zap.Int("not_attempted", len(result.NotAttempted)))

	return result, nil
}

// interruptedFailure reports a ticket whose update was cut off by the bulk
// deadline or cancellation. Its transaction did not commit.
func interruptedFailure(id string, err error) BulkFailure {
	reason := "deadline exceeded"
	if errors.Is(err, context.Canceled) {
		reason = "canceled"
	}
	return BulkFailure{
		TicketID: id,
		Code:     apperrors.CodeInternal,
		Reason:   reason,
		Message:  "bulk operation interrupted, ticket left unchanged",
	}
}

func toBulkFailure(id string, err error) BulkFailure {
	domainErr := apperrors.ToDomainError(err)
	return BulkFailure{
		TicketID: id,
		Code:     domainErr.Code,
		Reason:   domainErr.Reason,
		Message:  domainErr.Message,
		Details:  domainErr.Details,
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
