package lifecycle

import "github.com/spec-kit/facility-desk/internal/domain"

var deliveryChannels = []domain.NotificationChannel{domain.ChannelEmail, domain.ChannelPush}

// DeriveNotifications returns the events implied by a completed transition:
// one EMAIL and one PUSH to a newly assigned technician, and one EMAIL and one
// PUSH to the requester when the status changed by someone else. Priority and
// area changes alone notify nobody.
func DeriveNotifications(actor domain.Actor, before, after *domain.Ticket) []domain.NotificationEvent {
	var events []domain.NotificationEvent

	if after.TechnicianID != nil && !sameID(before.TechnicianID, after.TechnicianID) {
		payload := domain.PayloadFromTicket(after)
		payload.OldStatus = before.Status
		payload.UpdaterName = actor.Name
		events = append(events, fanOut(*after.TechnicianID, domain.TemplateTicketAssigned, payload)...)
	}

	if before.Status != after.Status && actor.ID != before.RequesterID {
		payload := domain.PayloadFromTicket(after)
		payload.OldStatus = before.Status
		payload.NewStatus = after.Status
		payload.UpdaterName = actor.Name
		events = append(events, fanOut(before.RequesterID, domain.TemplateTicketStatusChanged, payload)...)
	}

	return events
}

// CreationNotifications returns the emails sent when a ticket is filed: a
// confirmation to the requester and an alert to each manager of the area.
func CreationNotifications(ticket *domain.Ticket, managerIDs []string) []domain.NotificationEvent {
	payload := domain.PayloadFromTicket(ticket)
	events := []domain.NotificationEvent{{
		Channel:   domain.ChannelEmail,
		Recipient: ticket.RequesterID,
		Template:  domain.TemplateTicketCreated,
		Payload:   payload,
	}}
	for _, id := range managerIDs {
		if id == ticket.RequesterID {
			continue
		}
		events = append(events, domain.NotificationEvent{
			Channel:   domain.ChannelEmail,
			Recipient: id,
			Template:  domain.TemplateNewAreaTicket,
			Payload:   payload,
		})
	}
	return events
}

func fanOut(recipient string, template domain.TemplateKind, payload domain.NotificationPayload) []domain.NotificationEvent {
	events := make([]domain.NotificationEvent, 0, len(deliveryChannels))
	for _, channel := range deliveryChannels {
		events = append(events, domain.NotificationEvent{
			Channel:   channel,
			Recipient: recipient,
			Template:  template,
			Payload:   payload,
		})
	}
	return events
}
