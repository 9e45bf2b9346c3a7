package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/clock"
	"github.com/spec-kit/facility-desk/internal/config"
	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/events"
	"github.com/spec-kit/facility-desk/internal/idgen"
	"github.com/spec-kit/facility-desk/internal/lifecycle"
	"github.com/spec-kit/facility-desk/internal/observability"
	"github.com/spec-kit/facility-desk/internal/policy"
	"github.com/spec-kit/facility-desk/internal/repository"
	"github.com/spec-kit/facility-desk/internal/sla"
	apperrors "github.com/spec-kit/facility-desk/pkg/util/errorutil"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	areas      repository.AreaRepository
	users      repository.UserRepository
	allocator  *idgen.Allocator
	authz      *policy.Authorizer
	machine    *lifecycle.Machine
	sla        sla.Calculator
	clock      clock.Clock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.LifecycleConfig
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	AreaRepo    repository.AreaRepository
	UserRepo    repository.UserRepository
	Counters    idgen.CounterStore
	Exceptions  policy.ExceptionTable
	Clock       clock.Clock
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Config      config.LifecycleConfig
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	AreaID      string
	Title       string
	Description string
	Location    string
	Equipment   string
	Model       string
	AssetTag    string
	Priority    domain.TicketPriority
}

// TicketListFilter narrows a listing within the caller's visibility scope.
type TicketListFilter struct {
	AreaID     *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg.AllocationRetries <= 0 {
		cfg.AllocationRetries = 3
	}
	if cfg.BulkMaxIDs <= 0 {
		cfg.BulkMaxIDs = 100
	}
	calc := sla.NewCalculator(cfg.BusinessLocation)
	authz := policy.NewAuthorizer(deps.Exceptions)

	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		areas:      deps.AreaRepo,
		users:      deps.UserRepo,
		allocator:  idgen.NewAllocator(deps.Counters),
		authz:      authz,
		machine:    lifecycle.NewMachine(authz, calc, clk),
		sla:        calc,
		clock:      clk,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Authorizer exposes the policy used by the service.
func (s *TicketService) Authorizer() *policy.Authorizer {
	return s.authz
}

// CreateTicket files a new OPEN ticket for requesterID.
func (s *TicketService) CreateTicket(ctx context.Context, requesterID string, input TicketCreateInput) (*domain.Ticket, error) {
	input = trimCreateInput(input)
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	area, err := s.areas.GetByID(ctx, input.AreaID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("area", map[string]any{"area_id": input.AreaID})
		}
		return nil, apperrors.MapError(err)
	}

	now := s.clock.Now().UTC()
	deadline, err := s.sla.Deadline(now, input.Priority)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		RequesterID: requesterID,
		AreaID:      area.ID,
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Equipment:   input.Equipment,
		Model:       input.Model,
		AssetTag:    input.AssetTag,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		SLADeadline: deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.insertWithHumanID(ctx, ticket, area); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("human_id", ticket.HumanID),
		zap.String("area", area.Code))

	s.publish(ctx, lifecycle.CreationNotifications(ticket, s.managerIDs(ctx, area.ID)))
	return ticket, nil
}

// insertWithHumanID allocates identifiers until the insert stops colliding
// or the retry budget is spent.
func (s *TicketService) insertWithHumanID(ctx context.Context, ticket *domain.Ticket, area *domain.Area) error {
	for attempt := 1; attempt <= s.cfg.AllocationRetries; attempt++ {
		humanID, err := s.allocator.Allocate(ctx, area)
		if err != nil {
			s.logger.Error("ticket id allocation failed", zap.String("area", area.Code), zap.Error(err))
			return apperrors.NewInternalError(err)
		}
		ticket.HumanID = humanID

		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateHumanID) {
			return apperrors.MapError(err)
		}
		s.logger.Warn("ticket id collision, retrying",
			zap.String("human_id", humanID),
			zap.Int("attempt", attempt))
	}
	return apperrors.NewConflict("could not allocate a unique ticket id", map[string]any{
		"area":     area.Code,
		"attempts": s.cfg.AllocationRetries,
	})
}

func (s *TicketService) managerIDs(ctx context.Context, areaID string) []string {
	managers, err := s.users.ListByRoleAndArea(ctx, domain.RoleManager, areaID)
	if err != nil {
		s.logger.Warn("list area managers failed", zap.String("area_id", areaID), zap.Error(err))
		return nil
	}
	ids := make([]string, 0, len(managers))
	for _, m := range managers {
		ids = append(ids, m.ID)
	}
	return ids
}

// UpdateTicket applies change to ticketID on behalf of actor. Notification
// failures never fail the update.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID string, change domain.TicketChange) (*domain.Ticket, error) {
	ticket, err := s.applyChange(ctx, actor, ticketID, change)
	if err != nil {
		s.metrics.RecordTransition(errorOutcome(err))
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) applyChange(ctx context.Context, actor domain.Actor, ticketID string, change domain.TicketChange) (*domain.Ticket, error) {
	before, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	transition, err := s.machine.Apply(actor, before, change)
	if err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, change); err != nil {
		return nil, err
	}

	if !transition.Changed() {
		s.metrics.RecordTransition("noop")
		return &transition.After, nil
	}

	if err := s.tickets.ApplyTransition(ctx, &transition.After, before.UpdatedAt, transition.History); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleTicket):
			return nil, apperrors.NewConflict("ticket was modified concurrently, retry", map[string]any{"ticket_id": ticketID})
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		default:
			return nil, apperrors.MapError(err)
		}
	}

	s.metrics.RecordTransition("applied")
	s.logger.Info("ticket updated",
		zap.String("ticket_id", ticketID),
		zap.String("actor_id", actor.ID),
		zap.Strings("fields", change.Fields()),
		zap.String("status", string(transition.After.Status)))

	s.publish(ctx, transition.Events)
	return &transition.After, nil
}

// checkReferences verifies that a newly named technician and area exist.
func (s *TicketService) checkReferences(ctx context.Context, change domain.TicketChange) error {
	if change.Technician.Set && change.Technician.Value != nil {
		id := strings.TrimSpace(*change.Technician.Value)
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("technician", map[string]any{"technician_id": id})
			}
			return apperrors.MapError(err)
		}
	}
	if change.Area.Set {
		id := strings.TrimSpace(change.Area.Value)
		if _, err := s.areas.GetByID(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("area", map[string]any{"area_id": id})
			}
			return apperrors.MapError(err)
		}
	}
	return nil
}

// GetTicket returns a ticket visible to actor.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanView(actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets lists tickets within actor's visibility scope.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	scope := s.authz.ListScope(actor)
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		Limit:      clampLimit(filter.Limit),
		Offset:     max(filter.Offset, 0),
	}

	switch {
	case scope.RequesterID != "":
		repoFilter.RequesterID = &scope.RequesterID
	case scope.TechnicianID != "":
		repoFilter.TechnicianID = &scope.TechnicianID
	case !scope.All:
		areas := scope.AreaIDs
		if filter.AreaID != nil {
			areas = intersect(areas, *filter.AreaID)
		}
		if len(areas) == 0 {
			return []domain.Ticket{}, nil
		}
		repoFilter.AreaIDs = areas
	}
	if filter.AreaID != nil && len(repoFilter.AreaIDs) == 0 {
		repoFilter.AreaIDs = []string{*filter.AreaID}
	}

	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// ListHistory returns the audit trail of a ticket visible to actor.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

// ListAreas returns the routing areas.
func (s *TicketService) ListAreas(ctx context.Context) ([]domain.Area, error) {
	areas, err := s.areas.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return areas, nil
}

// publish hands events to the dispatcher. Errors are logged only.
func (s *TicketService) publish(ctx context.Context, evts []domain.NotificationEvent) {
	if s.dispatcher == nil || len(evts) == 0 {
		return
	}
	if err := s.dispatcher.Publish(ctx, evts...); err != nil {
		s.logger.Warn("notification publish failed",
			zap.Int("events", len(evts)),
			zap.String("ticket_id", evts[0].Payload.TicketID),
			zap.Error(err))
	}
}

func trimCreateInput(in TicketCreateInput) TicketCreateInput {
	in.AreaID = strings.TrimSpace(in.AreaID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Equipment = strings.TrimSpace(in.Equipment)
	in.Model = strings.TrimSpace(in.Model)
	in.AssetTag = strings.TrimSpace(in.AssetTag)
	return in
}

func validateCreateInput(in TicketCreateInput) error {
	fields := map[string]any{}
	minLen := func(field, value string, n int) {
		if utf8.RuneCountInString(value) < n {
			fields[field] = "must be at least " + strconv.Itoa(n) + " characters"
		}
	}
	minLen("title", in.Title, 5)
	minLen("description", in.Description, 10)
	minLen("location", in.Location, 3)
	minLen("equipment", in.Equipment, 3)
	minLen("model", in.Model, 3)
	minLen("asset_tag", in.AssetTag, 3)
	if in.AreaID == "" {
		fields["area_id"] = "is required"
	}
	if !in.Priority.IsValid() {
		fields["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid ticket", map[string]any{"fields": fields})
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func intersect(values []string, v string) []string {
	for _, candidate := range values {
		if candidate == v {
			return []string{v}
		}
	}
	return nil
}

func errorOutcome(err error) string {
	if domainErr := apperrors.ToDomainError(err); domainErr != nil {
		return strings.ToLower(domainErr.Code)
	}
	return "error"
}
