package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusOnHold     TicketStatus = "ON_HOLD"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

var statusLabels = map[TicketStatus]string{
	TicketStatusOpen:       "Open",
	TicketStatusAssigned:   "Assigned",
	TicketStatusInProgress: "In progress",
	TicketStatusOnHold:     "On hold",
	TicketStatusResolved:   "Resolved",
	TicketStatusClosed:     "Closed",
	TicketStatusCancelled:  "Cancelled",
}

// IsValid checks if the status is one of the allowed values.
func (s TicketStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human readable status name used in notifications.
func (s TicketStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// IsValid checks if the priority is one of the allowed values.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	default:
		return false
	}
}

// Ticket is the aggregate for maintenance and IT requests.
type Ticket struct {
	ID                 string
	HumanID            string
	RequesterID        string
	AreaID             string
	TechnicianID       *string
	Title              string
	Description        string
	Location           string
	Equipment          string
	Model              string
	AssetTag           string
	Status             TicketStatus
	Priority           TicketPriority
	SatisfactionRating *int
	SLADeadline        time.Time
	ResolvedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a copy that shares no pointers with t.
func (t Ticket) Clone() Ticket {
	out := t
	if t.TechnicianID != nil {
		id := *t.TechnicianID
		out.TechnicianID = &id
	}
	if t.SatisfactionRating != nil {
		rating := *t.SatisfactionRating
		out.SatisfactionRating = &rating
	}
	if t.ResolvedAt != nil {
		resolved := *t.ResolvedAt
		out.ResolvedAt = &resolved
	}
	return out
}

// HasTechnician reports whether a technician is assigned.
func (t *Ticket) HasTechnician() bool {
	return t.TechnicianID != nil
}

// IsAssignedTo reports whether userID is the assigned technician.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.TechnicianID != nil && *t.TechnicianID == userID
}
