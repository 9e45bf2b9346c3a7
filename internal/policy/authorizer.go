// Package policy decides which actors may view and mutate tickets.
package policy

import (
	"github.com/spec-kit/facility-desk/internal/domain"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

// Authorizer evaluates the role matrix against an injected exception table.
type Authorizer struct {
	exceptions ExceptionTable
}

// NewAuthorizer builds an authorizer. A nil table grants no extra areas.
func NewAuthorizer(exceptions ExceptionTable) *Authorizer {
	if exceptions == nil {
		exceptions = NewStaticExceptionTable(nil)
	}
	return &Authorizer{exceptions: exceptions}
}

// CanApply returns nil when actor may apply change to ticket, otherwise an
// authorization error naming the reason and the denied field.
func (a *Authorizer) CanApply(actor domain.Actor, ticket *domain.Ticket, change domain.TicketChange) error {
	if change.Status.Set && change.Status.Value == domain.TicketStatusClosed {
		return apperrors.NewAuthorizationError(apperrors.ReasonReservedTransition, domain.FieldStatus)
	}

	switch actor.Role {
	case domain.RoleSuperAdmin:
		return nil
	case domain.RoleManager:
		if !a.Governs(actor, ticket.AreaID) {
			return apperrors.NewAuthorizationError(apperrors.ReasonAreaNotGoverned, "")
		}
		return nil
	case domain.RoleTechnician:
		for _, field := range change.Fields() {
			if field != domain.FieldStatus {
				return apperrors.NewAuthorizationError(apperrors.ReasonFieldNotPermitted, field)
			}
		}
		if !ticket.IsAssignedTo(actor.ID) {
			return apperrors.NewAuthorizationError(apperrors.ReasonNotAssignedTechnician, domain.FieldStatus)
		}
		return nil
	default:
		return apperrors.NewAuthorizationError(apperrors.ReasonRoleNotPermitted, "")
	}
}

// Governs reports whether a manager actor administers areaID, either as
// their own area or through the exception table.
func (a *Authorizer) Governs(actor domain.Actor, areaID string) bool {
	if actor.InArea(areaID) {
		return true
	}
	for _, extra := range a.exceptions.ExtraAreas(actor.Email) {
		if extra == areaID {
			return true
		}
	}
	return false
}

// GovernedAreas lists the areas a manager administers, own area first.
func (a *Authorizer) GovernedAreas(actor domain.Actor) []string {
	areas := make([]string, 0, 1)
	seen := map[string]struct{}{}
	if actor.AreaID != nil {
		areas = append(areas, *actor.AreaID)
		seen[*actor.AreaID] = struct{}{}
	}
	for _, extra := range a.exceptions.ExtraAreas(actor.Email) {
		if _, ok := seen[extra]; ok {
			continue
		}
		seen[extra] = struct{}{}
		areas = append(areas, extra)
	}
	return areas
}

// CanView returns nil when actor may read ticket.
func (a *Authorizer) CanView(actor domain.Actor, ticket *domain.Ticket) error {
	switch {
	case actor.Role == domain.RoleSuperAdmin:
		return nil
	case ticket.RequesterID == actor.ID:
		return nil
	case actor.Role == domain.RoleTechnician && ticket.IsAssignedTo(actor.ID):
		return nil
	case actor.Role == domain.RoleManager && a.Governs(actor, ticket.AreaID):
		return nil
	}
	return apperrors.NewForbidden("ticket not visible to actor")
}

// Scope restricts a ticket listing. A zero Scope with All unset matches
// nothing.
type Scope struct {
	All          bool
	RequesterID  string
	TechnicianID string
	AreaIDs      []string
}

// ListScope returns the listing restriction for actor.
func (a *Authorizer) ListScope(actor domain.Actor) Scope {
	switch actor.Role {
	case domain.RoleSuperAdmin:
		return Scope{All: true}
	case domain.RoleManager:
		return Scope{AreaIDs: a.GovernedAreas(actor)}
	case domain.RoleTechnician:
		return Scope{TechnicianID: actor.ID}
	default:
		return Scope{RequesterID: actor.ID}
	}
}
