package policy_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/policy"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

const (
	areaIT         = "area-it"
	areaBuilding   = "area-building"
	areaElectrical = "area-electrical"
)

func strPtr(s string) *string { return &s }

func ticketIn(area string, technician *string) *domain.Ticket {
	return &domain.Ticket{
		ID:           "t-1",
		RequesterID:  "requester-1",
		AreaID:       area,
		TechnicianID: technician,
		Status:       domain.TicketStatusAssigned,
		Priority:     domain.TicketPriorityMedium,
	}
}

func manager(email, area string) domain.Actor {
	return domain.Actor{ID: "mgr-1", Name: "Manager", Email: email, Role: domain.RoleManager, AreaID: strPtr(area)}
}

func assertDenied(t *testing.T, err error, reason, field string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "expected FORBIDDEN, got %v", err)
	assert.True(t, apperrors.HasReason(err, reason), "expected reason %q, got %v", reason, err)
	if field != "" {
		domainErr := apperrors.ToDomainError(err)
		assert.Equal(t, field, domainErr.Details["field"])
	}
}

func TestCanApply_ClosedIsReservedForEveryRole(t *testing.T) {
	authz := policy.NewAuthorizer(nil)
	change := domain.TicketChange{Status: domain.Some(domain.TicketStatusClosed)}
	tech := "tech-1"

	actors := []domain.Actor{
		{ID: "admin", Role: domain.RoleSuperAdmin},
		manager("m@example.com", areaIT),
		{ID: tech, Role: domain.RoleTechnician, AreaID: strPtr(areaIT)},
		{ID: "requester-1", Role: domain.RoleCommon},
	}
	for _, actor := range actors {
		t.Run(string(actor.Role), func(t *testing.T) {
			err := authz.CanApply(actor, ticketIn(areaIT, &tech), change)
			assertDenied(t, err, apperrors.ReasonReservedTransition, domain.FieldStatus)
		})
	}
}

func TestCanApply_SuperAdminUnrestricted(t *testing.T) {
	authz := policy.NewAuthorizer(nil)
	admin := domain.Actor{ID: "admin", Role: domain.RoleSuperAdmin}
	change := domain.TicketChange{
		Status:     domain.Some(domain.TicketStatusInProgress),
		Technician: domain.Some(strPtr("tech-2")),
		Priority:   domain.Some(domain.TicketPriorityUrgent),
		Area:       domain.Some(areaBuilding),
	}
	assert.NoError(t, authz.CanApply(admin, ticketIn(areaIT, nil), change))
}

func TestCanApply_ManagerOwnArea(t *testing.T) {
	authz := policy.NewAuthorizer(nil)
	change := domain.TicketChange{Priority: domain.Some(domain.TicketPriorityHigh)}

	assert.NoError(t, authz.CanApply(manager("it@example.com", areaIT), ticketIn(areaIT, nil), change))

	err := authz.CanApply(manager("it@example.com", areaIT), ticketIn(areaBuilding, nil), change)
	assertDenied(t, err, apperrors.ReasonAreaNotGoverned, "")
}

func TestCanApply_ManagerWithExceptionGovernsExtraArea(t *testing.T) {
	table := policy.NewStaticExceptionTable(map[string][]string{
		"Facilities.Lead@Example.com": {areaBuilding, areaElectrical},
	})
	authz := policy.NewAuthorizer(table)
	actor := manager("facilities.lead@example.com", areaBuilding)
	change := domain.TicketChange{Technician: domain.Some(strPtr("tech-9"))}

	assert.NoError(t, authz.CanApply(actor, ticketIn(areaElectrical, strPtr("tech-1")), change))

	err := authz.CanApply(actor, ticketIn(areaIT, nil), change)
	assertDenied(t, err, apperrors.ReasonAreaNotGoverned, "")

	other := manager("someone.else@example.com", areaBuilding)
	err = authz.CanApply(other, ticketIn(areaElectrical, nil), change)
	assertDenied(t, err, apperrors.ReasonAreaNotGoverned, "")
}

func TestCanApply_TechnicianStatusOnlyWhenAssigned(t *testing.T) {
	authz := policy.NewAuthorizer(nil)
	tech := domain.Actor{ID: "tech-1", Role: domain.RoleTechnician, AreaID: strPtr(areaIT)}
	status := domain.TicketChange{Status: domain.Some(domain.TicketStatusInProgress)}

	assert.NoError(t, authz.CanApply(tech, ticketIn(areaIT, strPtr("tech-1")), status))

	err := authz.CanApply(tech, ticketIn(areaIT, strPtr("tech-2")), status)
	assertDenied(t, err, apperrors.ReasonNotAssignedTechnician, domain.FieldStatus)

	err = authz.CanApply(tech, ticketIn(areaIT, nil), status)
	assertDenied(t, err, apperrors.ReasonNotAssignedTechnician, domain.FieldStatus)
}

func TestCanApply_TechnicianDeniedOtherFields(t *testing.T) {
	authz := policy.NewAuthorizer(nil)
	tech := domain.Actor{ID: "tech-1", Role: domain.RoleTechnician, AreaID: strPtr(areaIT)}
	assigned := ticketIn(areaIT, strPtr("tech-1"))

	cases := map[string]domain.TicketChange{
		domain.FieldPriority:   {Priority: domain.Some(domain.TicketPriorityLow)},
		domain.FieldTechnician: {Technician: domain.Some[*string](nil)},
		domain.FieldArea:       {Area: domain.Some(areaBuilding)},
	}
	for field, change := range cases {
		t.Run(field, func(t *testing.T) {
			err := authz.CanApply(tech, assigned, change)
			assertDenied(t, err, apperrors.ReasonFieldNotPermitted, field)
		})
	}

	mixed := domain.TicketChange{
		Status:   domain.Some(domain.TicketStatusResolved),
		Priority: domain.Some(domain.TicketPriorityLow),
	}
	assertDenied(t, authz.CanApply(tech, assigned, mixed), apperrors.ReasonFieldNotPermitted, domain.FieldPriority)
}

func TestCanApply_CommonHasNoAccess(t *testing.T) {
	authz := policy.NewAuthorizer(nil)
	requester := domain.Actor{ID: "requester-1", Role: domain.RoleCommon}
	change := domain.TicketChange{Status: domain.Some(domain.TicketStatusCancelled)}

	err := authz.CanApply(requester, ticketIn(areaIT, nil), change)
	assertDenied(t, err, apperrors.ReasonRoleNotPermitted, "")
}

func TestCanView(t *testing.T) {
	authz := policy.NewAuthorizer(policy.NewStaticExceptionTable(map[string][]string{
		"lead@example.com": {areaElectrical},
	}))
	ticket := ticketIn(areaElectrical, strPtr("tech-1"))

	assert.NoError(t, authz.CanView(domain.Actor{ID: "admin", Role: domain.RoleSuperAdmin}, ticket))
	assert.NoError(t, authz.CanView(domain.Actor{ID: "requester-1", Role: domain.RoleCommon}, ticket))
	assert.NoError(t, authz.CanView(domain.Actor{ID: "tech-1", Role: domain.RoleTechnician}, ticket))
	assert.NoError(t, authz.CanView(manager("lead@example.com", areaBuilding), ticket))

	assert.Error(t, authz.CanView(domain.Actor{ID: "other", Role: domain.RoleCommon}, ticket))
	assert.Error(t, authz.CanView(domain.Actor{ID: "tech-2", Role: domain.RoleTechnician}, ticket))
	assert.Error(t, authz.CanView(manager("it@example.com", areaIT), ticket))
}

func TestListScope(t *testing.T) {
	authz := policy.NewAuthorizer(policy.NewStaticExceptionTable(map[string][]string{
		"lead@example.com": {areaElectrical, areaBuilding},
	}))

	assert.Equal(t, policy.Scope{All: true}, authz.ListScope(domain.Actor{Role: domain.RoleSuperAdmin}))
	assert.Equal(t, policy.Scope{RequesterID: "u1"}, authz.ListScope(domain.Actor{ID: "u1", Role: domain.RoleCommon}))
	assert.Equal(t, policy.Scope{TechnicianID: "t1"}, authz.ListScope(domain.Actor{ID: "t1", Role: domain.RoleTechnician}))

	scope := authz.ListScope(manager("lead@example.com", areaBuilding))
	assert.Equal(t, []string{areaBuilding, areaElectrical}, scope.AreaIDs)
}

func TestLoadExceptionFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := []byte("manager_exceptions:\n  Lead@Example.com:\n    - area-building\n    - area-electrical\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	table, err := policy.LoadExceptionFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []string{areaBuilding, areaElectrical}, table.ExtraAreas(" lead@example.com "))
	assert.Nil(t, table.ExtraAreas("nobody@example.com"))
}

func TestLoadExceptionFile_EmptyPath(t *testing.T) {
	table, err := policy.LoadExceptionFile("")
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestParseExceptions_RejectsBlankArea(t *testing.T) {
	_, err := policy.ParseExceptions([]byte("manager_exceptions:\n  a@example.com: [\"\"]\n"))
	assert.Error(t, err)
}

func TestResolveAreas_MapsCodesToIDs(t *testing.T) {
	table, err := policy.ParseExceptions([]byte("manager_exceptions:\n  lead@example.com: [ELECTRICAL, area-building]\n"))
	require.NoError(t, err)

	resolved, err := table.ResolveAreas(func(ref string) (string, error) {
		if ref == "ELECTRICAL" {
			return areaElectrical, nil
		}
		return ref, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{areaElectrical, areaBuilding}, resolved.ExtraAreas("lead@example.com"))

	_, err = table.ResolveAreas(func(string) (string, error) { return "", errors.New("store offline") })
	assert.ErrorContains(t, err, "store offline")
}
