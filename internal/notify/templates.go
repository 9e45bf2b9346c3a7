package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/spec-kit/facility-desk/internal/domain"
)

// TemplateData is the context a template is rendered with.
type TemplateData struct {
	domain.NotificationPayload
	RecipientName  string
	RequesterName  string
	AreaName       string
	TicketURL      string
	OldStatusLabel string
	NewStatusLabel string
}

type messageTemplate struct {
	subject   *template.Template
	body      *template.Template
	pushTitle *template.Template
	pushBody  *template.Template
}

type templateSource struct {
	subject, body, pushTitle, pushBody string
}

var sources = map[domain.TemplateKind]templateSource{
	domain.TemplateTicketAssigned: {
		subject: `You were assigned to ticket {{.HumanID}}: {{.Title}}`,
		body: `Hello {{.RecipientName}},

You were assigned to ticket **{{.HumanID}}**.

| | |
|---|---|
| Title | {{.Title}} |
| Priority | {{.Priority}} |
| Requester | {{.RequesterName}} |
| Area | {{.AreaName}} |
| Location | {{.Location}} |
| Equipment | {{.Equipment}} |

[Open the ticket]({{.TicketURL}})
`,
		pushTitle: `New ticket assigned to you`,
		pushBody:  `New {{.AreaName}} ticket: {{.Title}}`,
	},
	domain.TemplateTicketStatusChanged: {
		subject: `Ticket {{.HumanID}} status updated to {{.NewStatusLabel}}`,
		body: `Hello {{.RecipientName}},

{{.UpdaterName}} moved your ticket **{{.HumanID}}** ({{.Title}}) from *{{.OldStatusLabel}}* to *{{.NewStatusLabel}}*.

[Open the ticket]({{.TicketURL}})
`,
		pushTitle: `Your ticket changed status`,
		pushBody:  `The status of ticket {{.Title}} is now {{.NewStatusLabel}}`,
	},
	domain.TemplateTicketCreated: {
		subject: `Ticket created: {{.HumanID}}`,
		body: `Hello {{.RecipientName}},

We received your ticket **{{.HumanID}}** for the {{.AreaName}} team.

- Title: {{.Title}}
- Priority: {{.Priority}}
- Location: {{.Location}}

[Follow the ticket]({{.TicketURL}})
`,
		pushTitle: `Ticket {{.HumanID}} created`,
		pushBody:  `{{.Title}}`,
	},
	domain.TemplateNewAreaTicket: {
		subject: `New ticket {{.HumanID}}: {{.Title}}`,
		body: `Hello {{.RecipientName}},

{{.RequesterName}} opened ticket **{{.HumanID}}** in {{.AreaName}}.

> {{.Description}}

- Priority: {{.Priority}}
- Location: {{.Location}}
- Equipment: {{.Equipment}}

[Triage the ticket]({{.TicketURL}})
`,
		pushTitle: `New {{.AreaName}} ticket`,
		pushBody:  `{{.HumanID}}: {{.Title}}`,
	},
}

// Renderer turns notification events into email and push messages.
type Renderer struct {
	baseURL   string
	markdown  goldmark.Markdown
	templates map[domain.TemplateKind]messageTemplate
}

// NewRenderer parses the built-in templates. baseURL prefixes ticket links in
// emails; push links stay relative so the service worker resolves them.
func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		templates: make(map[domain.TemplateKind]messageTemplate, len(sources)),
	}
	for kind, src := range sources {
		tpl, err := parseSource(kind, src)
		if err != nil {
			return nil, err
		}
		r.templates[kind] = tpl
	}
	return r, nil
}

func parseSource(kind domain.TemplateKind, src templateSource) (messageTemplate, error) {
	parse := func(part, text string) (*template.Template, error) {
		tpl, err := template.New(string(kind) + "." + part).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s %s template: %w", kind, part, err)
		}
		return tpl, nil
	}
	var (
		out messageTemplate
		err error
	)
	if out.subject, err = parse("subject", src.subject); err != nil {
		return out, err
	}
	if out.body, err = parse("body", src.body); err != nil {
		return out, err
	}
	if out.pushTitle, err = parse("push_title", src.pushTitle); err != nil {
		return out, err
	}
	if out.pushBody, err = parse("push_body", src.pushBody); err != nil {
		return out, err
	}
	return out, nil
}

// TicketPath is the portal path of a ticket.
func TicketPath(ticketID string) string {
	return "/tickets/" + ticketID
}

// TicketURL is the absolute portal URL of a ticket.
func (r *Renderer) TicketURL(ticketID string) string {
	return r.baseURL + TicketPath(ticketID)
}

// Email renders the subject and HTML body for kind.
func (r *Renderer) Email(kind domain.TemplateKind, data TemplateData) (subject, html string, err error) {
	tpl, ok := r.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", kind)
	}
	data = r.fill(data)

	subject, err = execute(tpl.subject, data)
	if err != nil {
		return "", "", err
	}
	source, err := execute(tpl.body, data)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &buf); err != nil {
		return "", "", fmt.Errorf("render %s markdown: %w", kind, err)
	}
	return singleLine(subject), buf.String(), nil
}

// Push renders the push message for kind.
func (r *Renderer) Push(kind domain.TemplateKind, data TemplateData) (PushMessage, error) {
	tpl, ok := r.templates[kind]
	if !ok {
		return PushMessage{}, fmt.Errorf("unknown template %q", kind)
	}
	data = r.fill(data)

	title, err := execute(tpl.pushTitle, data)
	if err != nil {
		return PushMessage{}, err
	}
	body, err := execute(tpl.pushBody, data)
	if err != nil {
		return PushMessage{}, err
	}
	return PushMessage{
		Title: singleLine(title),
		Body:  singleLine(body),
		URL:   TicketPath(data.TicketID),
	}, nil
}

func (r *Renderer) fill(data TemplateData) TemplateData {
	if data.TicketURL == "" {
		data.TicketURL = r.TicketURL(data.TicketID)
	}
	if data.OldStatusLabel == "" && data.OldStatus != "" {
		data.OldStatusLabel = data.OldStatus.Label()
	}
	if data.NewStatusLabel == "" && data.NewStatus != "" {
		data.NewStatusLabel = data.NewStatus.Label()
	}
	if data.RecipientName == "" {
		data.RecipientName = "there"
	}
	if data.UpdaterName == "" {
		data.UpdaterName = "The support team"
	}
	return data
}

func execute(tpl *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
