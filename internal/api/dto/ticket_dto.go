package dto

import (
	"time"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	AreaID      string                `json:"area_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Location    string                `json:"location"`
	Equipment   string                `json:"equipment"`
	Model       string                `json:"model"`
	AssetTag    string                `json:"asset_tag"`
	Priority    domain.TicketPriority `json:"priority"`
}

// TicketChangeRequest is the PATCH body. Omitted keys leave a field
// untouched; "technician_id": null unassigns.
type TicketChangeRequest struct {
	Status       domain.Optional[domain.TicketStatus]   `json:"status"`
	TechnicianID domain.Optional[*string]               `json:"technician_id"`
	Priority     domain.Optional[domain.TicketPriority] `json:"priority"`
	AreaID       domain.Optional[string]                `json:"area_id"`
}

// ToChange converts the request into a lifecycle change.
func (r TicketChangeRequest) ToChange() domain.TicketChange {
	return domain.TicketChange{
		Status:     r.Status,
		Technician: r.TechnicianID,
		Priority:   r.Priority,
		Area:       r.AreaID,
	}
}

// BulkUpdateRequest applies one change to many tickets.
type BulkUpdateRequest struct {
	IDs    []string            `json:"ids"`
	Change TicketChangeRequest `json:"change"`
}

// TicketResponse is the public ticket representation.
type TicketResponse struct {
	ID                 string                `json:"id"`
	HumanID            string                `json:"human_id"`
	RequesterID        string                `json:"requester_id"`
	AreaID             string                `json:"area_id"`
	TechnicianID       *string               `json:"technician_id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Location           string                `json:"location"`
	Equipment          string                `json:"equipment"`
	Model              string                `json:"model"`
	AssetTag           string                `json:"asset_tag"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	SatisfactionRating *int                  `json:"satisfaction_rating,omitempty"`
	SLADeadline        time.Time             `json:"sla_deadline"`
	ResolvedAt         *time.Time            `json:"resolved_at"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		HumanID:            t.HumanID,
		RequesterID:        t.RequesterID,
		AreaID:             t.AreaID,
		TechnicianID:       t.TechnicianID,
		Title:              t.Title,
		Description:        t.Description,
		Location:           t.Location,
		Equipment:          t.Equipment,
		Model:              t.Model,
		AssetTag:           t.AssetTag,
		Status:             t.Status,
		Priority:           t.Priority,
		SatisfactionRating: t.SatisfactionRating,
		SLADeadline:        t.SLADeadline,
		ResolvedAt:         t.ResolvedAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// TicketHistoryResponse entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID string                  `json:"changed_by_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewTicketHistoryResponse maps a history entry.
func NewTicketHistoryResponse(h *domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:          h.ID,
		ChangedByID: h.ChangedByID,
		ChangeType:  h.ChangeType,
		OldValue:    h.OldValue,
		NewValue:    h.NewValue,
		CreatedAt:   h.CreatedAt,
	}
}

// PushSubscriptionRequest mirrors the browser PushSubscription JSON.
type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// PushUnsubscribeRequest names the endpoint to remove.
type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// AreaResponse describes a routing area.
type AreaResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
