package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/notify"
)

func samplePayload() domain.NotificationPayload {
	return domain.NotificationPayload{
		TicketID:    "0b7c",
		HumanID:     "IT-000042",
		Title:       "Projector flickers",
		Description: "Room 3 projector flickers every minute",
		Priority:    domain.TicketPriorityHigh,
		Location:    "Room 3",
		Equipment:   "Projector",
		OldStatus:   domain.TicketStatusAssigned,
		NewStatus:   domain.TicketStatusInProgress,
		UpdaterName: "Dana",
	}
}

func TestRenderer_AssignedEmail(t *testing.T) {
	r, err := notify.NewRenderer("https://desk.example.com/")
	require.NoError(t, err)

	subject, html, err := r.Email(domain.TemplateTicketAssigned, notify.TemplateData{
		NotificationPayload: samplePayload(),
		RecipientName:       "Tech One",
		RequesterName:       "Riley",
		AreaName:            "Information Technology",
	})
	require.NoError(t, err)

	assert.Equal(t, "You were assigned to ticket IT-000042: Projector flickers", subject)
	assert.Contains(t, html, "<strong>IT-000042</strong>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "Riley")
	assert.Contains(t, html, `href="https://desk.example.com/tickets/0b7c"`)
}

func TestRenderer_StatusChangedUsesLabels(t *testing.T) {
	r, err := notify.NewRenderer("https://desk.example.com")
	require.NoError(t, err)

	subject, html, err := r.Email(domain.TemplateTicketStatusChanged, notify.TemplateData{NotificationPayload: samplePayload()})
	require.NoError(t, err)

	assert.Equal(t, "Ticket IT-000042 status updated to In progress", subject)
	assert.Contains(t, html, "Dana moved your ticket")
	assert.Contains(t, html, "<em>Assigned</em>")
	assert.Contains(t, html, "<em>In progress</em>")
}

func TestRenderer_EscapesRawHTML(t *testing.T) {
	r, err := notify.NewRenderer("https://desk.example.com")
	require.NoError(t, err)

	payload := samplePayload()
	payload.Description = "<script>alert(1)</script>"
	_, html, err := r.Email(domain.TemplateNewAreaTicket, notify.TemplateData{NotificationPayload: payload})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
}

func TestRenderer_Push(t *testing.T) {
	r, err := notify.NewRenderer("https://desk.example.com")
	require.NoError(t, err)

	msg, err := r.Push(domain.TemplateTicketStatusChanged, notify.TemplateData{NotificationPayload: samplePayload()})
	require.NoError(t, err)

	assert.Equal(t, notify.PushMessage{
		Title: "Your ticket changed status",
		Body:  "The status of ticket Projector flickers is now In progress",
		URL:   "/tickets/0b7c",
	}, msg)
}

func TestRenderer_AllKindsRender(t *testing.T) {
	r, err := notify.NewRenderer("")
	require.NoError(t, err)

	kinds := []domain.TemplateKind{
		domain.TemplateTicketAssigned,
		domain.TemplateTicketStatusChanged,
		domain.TemplateTicketCreated,
		domain.TemplateNewAreaTicket,
	}
	for _, kind := range kinds {
		subject, html, err := r.Email(kind, notify.TemplateData{NotificationPayload: samplePayload()})
		require.NoError(t, err, kind)
		assert.NotEmpty(t, subject, kind)
		assert.NotEmpty(t, html, kind)

		msg, err := r.Push(kind, notify.TemplateData{NotificationPayload: samplePayload()})
		require.NoError(t, err, kind)
		assert.NotEmpty(t, msg.Title, kind)
	}

	_, _, err = r.Email(domain.TemplateKind("nope"), notify.TemplateData{})
	assert.Error(t, err)
}
