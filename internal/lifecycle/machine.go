// Package lifecycle applies authorized transitions to ticket snapshots. It
// performs no I/O; persistence and delivery belong to the caller.
package lifecycle

import (
	"strings"
	"time"

	"github.com/spec-kit/facility-desk/internal/clock"
	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/policy"
	"github.com/spec-kit/facility-desk/internal/sla"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

// Transition is the outcome of a successful Apply.
type Transition struct {
	Before  domain.Ticket
	After   domain.Ticket
	Events  []domain.NotificationEvent
	History []domain.TicketHistory
}

// Changed reports whether any lifecycle field differs between the snapshots.
func (t *Transition) Changed() bool {
	return len(t.History) > 0
}

// Machine is the ticket state machine.
type Machine struct {
	authz *policy.Authorizer
	sla   sla.Calculator
	clock clock.Clock
}

// NewMachine wires the machine collaborators.
func NewMachine(authz *policy.Authorizer, calc sla.Calculator, clk clock.Clock) *Machine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Machine{authz: authz, sla: calc, clock: clk}
}

// Apply validates change, authorizes actor, and computes the new snapshot
// together with the notification events and history entries it implies.
// before is never modified.
func (m *Machine) Apply(actor domain.Actor, before *domain.Ticket, change domain.TicketChange) (*Transition, error) {
	if before == nil {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	if err := validateChange(change); err != nil {
		return nil, err
	}
	if err := m.authz.CanApply(actor, before, change); err != nil {
		return nil, err
	}
	if err := checkTerminal(before, change); err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC()
	after := before.Clone()

	if change.Status.Set {
		after.Status = change.Status.Value
		if after.Status == domain.TicketStatusResolved && after.ResolvedAt == nil {
			resolvedAt := now
			after.ResolvedAt = &resolvedAt
		}
	}

	if change.Technician.Set {
		if change.Technician.Value == nil {
			after.TechnicianID = nil
		} else {
			id := strings.TrimSpace(*change.Technician.Value)
			after.TechnicianID = &id
			if !change.Status.Set && after.Status == domain.TicketStatusOpen {
				after.Status = domain.TicketStatusAssigned
			}
		}
	}

	if change.Priority.Set {
		deadline, err := m.sla.Deadline(before.CreatedAt, change.Priority.Value)
		if err != nil {
			return nil, err
		}
		after.Priority = change.Priority.Value
		after.SLADeadline = deadline
	}

	if change.Area.Set {
		after.AreaID = strings.TrimSpace(change.Area.Value)
		if !change.Technician.Set && after.TechnicianID != nil {
			after.TechnicianID = nil
			// A cancelled ticket stays cancelled when moved.
			if after.Status != domain.TicketStatusCancelled {
				after.Status = domain.TicketStatusOpen
			}
		}
	}

	history := diffHistory(actor, before, &after, now)
	if len(history) > 0 {
		after.UpdatedAt = now
	}

	return &Transition{
		Before:  before.Clone(),
		After:   after,
		Events:  DeriveNotifications(actor, before, &after),
		History: history,
	}, nil
}

func validateChange(change domain.TicketChange) error {
	if change.IsEmpty() {
		return apperrors.NewValidationError("change must name at least one field", nil)
	}
	if change.Status.Set && !change.Status.Value.IsValid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"field": domain.FieldStatus, "value": change.Status.Value})
	}
	if change.Priority.Set && !change.Priority.Value.IsValid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"field": domain.FieldPriority, "value": change.Priority.Value})
	}
	if change.Area.Set && strings.TrimSpace(change.Area.Value) == "" {
		return apperrors.NewValidationError("area_id must not be empty", map[string]any{"field": domain.FieldArea})
	}
	if change.Technician.Set && change.Technician.Value != nil && strings.TrimSpace(*change.Technician.Value) == "" {
		return apperrors.NewValidationError("technician_id must not be blank", map[string]any{"field": domain.FieldTechnician})
	}
	return nil
}

// checkTerminal rejects every change on a CLOSED ticket and status changes on
// a CANCELLED one.
func checkTerminal(before *domain.Ticket, change domain.TicketChange) error {
	switch before.Status {
	case domain.TicketStatusClosed:
		return apperrors.NewValidationError("ticket is terminal", map[string]any{"status": before.Status})
	case domain.TicketStatusCancelled:
		if change.Status.Set {
			return apperrors.NewValidationError("ticket is terminal", map[string]any{"status": before.Status, "field": domain.FieldStatus})
		}
	}
	return nil
}

func diffHistory(actor domain.Actor, before, after *domain.Ticket, at time.Time) []domain.TicketHistory {
	var entries []domain.TicketHistory
	add := func(kind domain.TicketChangeType, oldValue, newValue map[string]any) {
		entries = append(entries, domain.TicketHistory{
			TicketID:    before.ID,
			ChangedByID: actor.ID,
			ChangeType:  kind,
			OldValue:    oldValue,
			NewValue:    newValue,
			CreatedAt:   at,
		})
	}

	if before.Status != after.Status {
		add(domain.ChangeTypeStatus,
			map[string]any{"status": string(before.Status)},
			map[string]any{"status": string(after.Status)})
	}
	if !sameID(before.TechnicianID, after.TechnicianID) {
		add(domain.ChangeTypeTechnician,
			map[string]any{"technician_id": idValue(before.TechnicianID)},
			map[string]any{"technician_id": idValue(after.TechnicianID)})
	}
	if before.Priority != after.Priority || !before.SLADeadline.Equal(after.SLADeadline) {
		add(domain.ChangeTypePriority,
			map[string]any{"priority": string(before.Priority), "sla_deadline": before.SLADeadline.Format(time.RFC3339)},
			map[string]any{"priority": string(after.Priority), "sla_deadline": after.SLADeadline.Format(time.RFC3339)})
	}
	if before.AreaID != after.AreaID {
		add(domain.ChangeTypeArea,
			map[string]any{"area_id": before.AreaID},
			map[string]any{"area_id": after.AreaID})
	}
	return entries
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func idValue(id *string) any {
	if id == nil {
		return nil
	}
	return *id
}
