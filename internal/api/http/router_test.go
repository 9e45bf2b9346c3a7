package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/facility-desk/internal/api/http"
	"github.com/spec-kit/facility-desk/internal/api/http/handlers"
	"github.com/spec-kit/facility-desk/internal/auth"
	"github.com/spec-kit/facility-desk/internal/clock"
	"github.com/spec-kit/facility-desk/internal/config"
	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/events"
	"github.com/spec-kit/facility-desk/internal/idgen"
	"github.com/spec-kit/facility-desk/internal/observability"
	"github.com/spec-kit/facility-desk/internal/persistence"
	"github.com/spec-kit/facility-desk/internal/repository/memory"
	"github.com/spec-kit/facility-desk/internal/service"
)

type apiFixture struct {
	app    *fiber.App
	store  *memory.Store
	tokens *auth.TokenManager

	requester, manager, tech domain.User
	it, building             domain.Area
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	f := &apiFixture{store: memory.NewStore(), tokens: auth.NewTokenManager("test-secret", 5)}
	f.it = f.store.AreaByCode(domain.AreaCodeIT)
	f.building = f.store.AreaByCode(domain.AreaCodeBuilding)

	create := func(name, email string, role domain.Role, areaID *string) domain.User {
		user := &domain.User{Name: name, Email: email, Role: role, AreaID: areaID}
		require.NoError(t, f.store.Users().Create(ctx, user))
		return *user
	}
	f.requester = create("Rita Requester", "rita@example.com", domain.RoleCommon, nil)
	f.manager = create("Ivy Manager", "ivy@example.com", domain.RoleManager, &f.it.ID)
	f.tech = create("Tom Tech", "tom@example.com", domain.RoleTechnician, &f.it.ID)

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  f.store.Tickets(),
		HistoryRepo: f.store.History(),
		AreaRepo:    f.store.Areas(),
		UserRepo:    f.store.Users(),
		Counters:    idgen.NewMemoryCounter(),
		Clock:       clock.NewFixed(time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)),
		Dispatcher:  events.NewInMemoryDispatcher(logger),
		Metrics:     metrics,
		Config:      config.LifecycleConfig{BusinessLocation: time.UTC, BulkMaxIDs: 50},
	})

	f.app = fiber.New(fiber.Config{ErrorHandler: httptransport.ErrorHandler(logger, metrics)})
	httptransport.RegisterMiddlewares(f.app, logger, metrics, time.Second)
	httptransport.RegisterRoutes(f.app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("facility-desk", "test", &persistence.Postgres{}, &persistence.Redis{}, metrics),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Push:           handlers.NewPushHandler(service.NewPushService(f.store.PushSubscriptions(), f.store.Users(), logger), "BPublicKey"),
		AuthMiddleware: auth.NewAuthMiddleware(f.tokens, f.store.Users()),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, user *domain.User, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, _, err := f.tokens.GenerateToken(user.ID, user.Role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func (f *apiFixture) createTicket(t *testing.T) map[string]any {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/tickets", &f.requester, map[string]any{
		"area_id":     f.it.ID,
		"title":       "Printer jammed",
		"description": "Paper stuck in tray two since this morning",
		"location":    "Floor 3",
		"equipment":   "Printer",
		"model":       "LaserJet 4000",
		"asset_tag":   "PT-0042",
		"priority":    "MEDIUM",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["data"].(map[string]any)
}

func errorBody(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error object: %v", body)
	return errObj
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = f.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/tickets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorBody(t, body)["code"])

	ghost := domain.User{ID: "ghost", Role: domain.RoleSuperAdmin}
	status, _ = f.do(t, http.MethodGet, "/tickets", &ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateAndGetTicket(t *testing.T) {
	f := newAPIFixture(t)
	ticket := f.createTicket(t)

	assert.Equal(t, "IT-000001", ticket["human_id"])
	assert.Equal(t, "OPEN", ticket["status"])
	assert.Equal(t, "2025-01-22T09:00:00Z", ticket["sla_deadline"])
	assert.Nil(t, ticket["technician_id"])

	status, body := f.do(t, http.MethodGet, "/tickets/"+ticket["id"].(string), &f.manager, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ticket["id"], body["data"].(map[string]any)["id"])

	status, body = f.do(t, http.MethodGet, "/tickets/"+ticket["id"].(string), &f.tech, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorBody(t, body)["code"])
}

func TestCreateTicket_ValidationDetails(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodPost, "/tickets", &f.requester, map[string]any{
		"area_id": f.it.ID, "title": "abc", "priority": "MEDIUM",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	errObj := errorBody(t, body)
	assert.Equal(t, "VALIDATION_FAILED", errObj["code"])
	fields := errObj["details"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "description")

	status, _ = f.do(t, http.MethodPost, "/tickets", &f.requester, "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPatchTicket_AssignAndUnassign(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createTicket(t)["id"].(string)

	status, body := f.do(t, http.MethodPatch, "/tickets/"+id, &f.manager, map[string]any{"technician_id": f.tech.ID})
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ASSIGNED", data["status"])
	assert.Equal(t, f.tech.ID, data["technician_id"])

	status, body = f.do(t, http.MethodPatch, "/tickets/"+id, &f.manager, `{"technician_id": null}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Nil(t, body["data"].(map[string]any)["technician_id"])

	status, body = f.do(t, http.MethodGet, "/tickets/"+id+"/history", &f.manager, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 3)
}

func TestPatchTicket_AuthorizationReason(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createTicket(t)["id"].(string)

	status, body := f.do(t, http.MethodPatch, "/tickets/"+id, &f.manager, map[string]any{"status": "CLOSED"})
	assert.Equal(t, http.StatusForbidden, status)
	errObj := errorBody(t, body)
	assert.Equal(t, "reserved transition", errObj["reason"])
	assert.Equal(t, "status", errObj["details"].(map[string]any)["field"])

	status, body = f.do(t, http.MethodPatch, "/tickets/"+id, &f.manager, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorBody(t, body)["code"])
}

func TestBulkPatch(t *testing.T) {
	f := newAPIFixture(t)
	first := f.createTicket(t)["id"].(string)
	second := f.createTicket(t)["id"].(string)

	status, body := f.do(t, http.MethodPatch, "/tickets", &f.manager, map[string]any{
		"ids":    []string{first, "00000000-0000-0000-0000-000000000000", second},
		"change": map[string]any{"priority": "HIGH"},
	})
	require.Equal(t, http.StatusOK, status, body)
	result := body["data"].(map[string]any)
	assert.EqualValues(t, 3, result["requested"])
	assert.EqualValues(t, 2, result["succeeded"])
	failed := result["failed"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, "NOT_FOUND", failed[0].(map[string]any)["code"])
}

func TestListTickets_ScopeAndFilters(t *testing.T) {
	f := newAPIFixture(t)
	f.createTicket(t)
	f.createTicket(t)

	status, body := f.do(t, http.MethodGet, "/tickets?status=open&page_size=1", &f.requester, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = f.do(t, http.MethodGet, "/tickets", &f.tech, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"].([]any))

	status, body = f.do(t, http.MethodGet, "/tickets?area_id="+f.building.ID, &f.manager, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"].([]any))
}

func TestPushSubscriptions(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/push/vapid-public-key", &f.tech, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "BPublicKey", body["data"].(map[string]any)["public_key"])

	sub := map[string]any{
		"endpoint": "https://push.example.com/abc",
		"keys":     map[string]any{"p256dh": "key", "auth": "secret"},
	}
	status, body = f.do(t, http.MethodPost, "/push/subscriptions", &f.tech, sub)
	require.Equal(t, http.StatusCreated, status, body)

	subs, err := f.store.PushSubscriptions().ListByUser(context.Background(), f.tech.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	status, _ = f.do(t, http.MethodPost, "/push/subscriptions", &f.tech, map[string]any{"endpoint": "http://insecure"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/push/subscriptions", &f.tech, map[string]any{"endpoint": "https://push.example.com/abc"})
	assert.Equal(t, http.StatusNoContent, status)
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorBody(t, body)["code"])
}
