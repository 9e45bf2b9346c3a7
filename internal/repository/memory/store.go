// Package memory provides in-process repository implementations used when no
// database is configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/repository"
)

// Store holds all entities behind a single lock so ApplyTransition is atomic.
type Store struct {
	mu       sync.RWMutex
	tickets  map[string]domain.Ticket
	humanIDs map[string]string
	history  []domain.TicketHistory
	areas    map[string]domain.Area
	users    map[string]domain.User
	pushSubs map[string]domain.PushSubscription
	now      func() time.Time
}

// NewStore returns an empty store seeded with the three fixed areas.
func NewStore() *Store {
	s := &Store{
		tickets:  map[string]domain.Ticket{},
		humanIDs: map[string]string{},
		areas:    map[string]domain.Area{},
		users:    map[string]domain.User{},
		pushSubs: map[string]domain.PushSubscription{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, seed := range []struct{ code, name string }{
		{domain.AreaCodeIT, "Information Technology"},
		{domain.AreaCodeBuilding, "Building Maintenance"},
		{domain.AreaCodeElectrical, "Electrical"},
	} {
		id := uuid.NewString()
		s.areas[id] = domain.Area{ID: id, Code: seed.code, Name: seed.name, CreatedAt: s.now()}
	}
	return s
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// History returns the history repository view.
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

// Areas returns the area repository view.
func (s *Store) Areas() repository.AreaRepository { return areaRepo{s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// PushSubscriptions returns the push subscription repository view.
func (s *Store) PushSubscriptions() repository.PushSubscriptionRepository { return pushRepo{s} }

// AreaByCode is a convenience for tests and seeding.
func (s *Store) AreaByCode(code string) domain.Area {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, area := range s.areas {
		if area.Code == code {
			return area
		}
	}
	return domain.Area{}
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.humanIDs[ticket.HumanID]; taken {
		return repository.ErrDuplicateHumanID
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	r.s.tickets[ticket.ID] = ticket.Clone()
	r.s.humanIDs[ticket.HumanID] = ticket.ID
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := ticket.Clone()
	return &out, nil
}

func (r ticketRepo) ApplyTransition(_ context.Context, after *domain.Ticket, expectedUpdatedAt time.Time, history []domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.tickets[after.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return repository.ErrStaleTicket
	}
	r.s.tickets[after.ID] = after.Clone()
	for i := range history {
		if history[i].ID == "" {
			history[i].ID = uuid.NewString()
		}
		r.s.history = append(r.s.history, history[i])
	}
	return nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if matches(ticket, filter) {
			result = append(result, ticket.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].HumanID > result[j].HumanID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matches(t domain.Ticket, f repository.TicketFilter) bool {
	if f.RequesterID != nil && t.RequesterID != *f.RequesterID {
		return false
	}
	if f.TechnicianID != nil && !t.IsAssignedTo(*f.TechnicianID) {
		return false
	}
	if len(f.AreaIDs) > 0 && !contains(f.AreaIDs, t.AreaID) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!strings.Contains(strings.ToLower(t.HumanID), term) {
			return false
		}
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

type historyRepo struct{ s *Store }

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.TicketHistory
	for _, entry := range r.s.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type areaRepo struct{ s *Store }

func (r areaRepo) GetByID(_ context.Context, id string) (*domain.Area, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	area, ok := r.s.areas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &area, nil
}

func (r areaRepo) GetByCode(_ context.Context, code string) (*domain.Area, error) {
	area := r.s.AreaByCode(code)
	if area.ID == "" {
		return nil, pgx.ErrNoRows
	}
	return &area, nil
}

func (r areaRepo) List(_ context.Context) ([]domain.Area, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Area, 0, len(r.s.areas))
	for _, area := range r.s.areas {
		result = append(result, area)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) ListByRoleAndArea(_ context.Context, role domain.Role, areaID string) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.User
	for _, user := range r.s.users {
		if user.Role == role && user.AreaID != nil && *user.AreaID == areaID {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type pushRepo struct{ s *Store }

func (r pushRepo) Upsert(_ context.Context, sub *domain.PushSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	if existing, ok := r.s.pushSubs[sub.Endpoint]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = uuid.NewString()
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	r.s.pushSubs[sub.Endpoint] = *sub
	return nil
}

func (r pushRepo) ListByUser(_ context.Context, userID string) ([]domain.PushSubscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.PushSubscription
	for _, sub := range r.s.pushSubs {
		if sub.UserID == userID {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Endpoint < result[j].Endpoint })
	return result, nil
}

func (r pushRepo) DeleteByEndpoint(_ context.Context, endpoint string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.pushSubs, endpoint)
	return nil
}
