package domain

// NotificationChannel identifies the delivery transport.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "EMAIL"
	ChannelPush  NotificationChannel = "PUSH"
)

// TemplateKind selects the message template.
type TemplateKind string

const (
	TemplateTicketAssigned      TemplateKind = "ticket_assigned"
	TemplateTicketStatusChanged TemplateKind = "ticket_status_changed"
	TemplateTicketCreated       TemplateKind = "ticket_created"
	TemplateNewAreaTicket       TemplateKind = "new_area_ticket"
)

// NotificationEvent is an ephemeral delivery instruction. It is never stored.
type NotificationEvent struct {
	ID        string
	Channel   NotificationChannel
	Recipient string
	Template  TemplateKind
	Payload   NotificationPayload
}

// NotificationPayload is the ticket context rendered into a message.
type NotificationPayload struct {
	TicketID    string
	HumanID     string
	Title       string
	Description string
	Priority    TicketPriority
	AreaID      string
	Location    string
	Equipment   string
	RequesterID string
	OldStatus   TicketStatus
	NewStatus   TicketStatus
	UpdaterName string
}

// PayloadFromTicket copies the descriptive ticket fields into a payload.
func PayloadFromTicket(t *Ticket) NotificationPayload {
	return NotificationPayload{
		TicketID:    t.ID,
		HumanID:     t.HumanID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		AreaID:      t.AreaID,
		Location:    t.Location,
		Equipment:   t.Equipment,
		RequesterID: t.RequesterID,
		NewStatus:   t.Status,
	}
}
