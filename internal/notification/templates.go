package notification

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/cuetime/reservations/internal/domain"
)

type adminRequestData struct {
	Reservation domain.Reservation
	ApproveLink string
	RejectLink  string
}

type outcomeData struct {
	Reservation domain.Reservation
}

type mailTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func newMailTemplate(name, subject, text, html string) mailTemplate {
	return mailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".txt").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Parse(html)),
	}
}

func (m mailTemplate) render(to string, data any) (*Message, error) {
	var subject, text, html strings.Builder
	if err := m.subject.Execute(&subject, data); err != nil {
		return nil, err
	}
	if err := m.text.Execute(&text, data); err != nil {
		return nil, err
	}
	if err := m.html.Execute(&html, data); err != nil {
		return nil, err
	}
	return &Message{
		To:      to,
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

var adminRequestTemplate = newMailTemplate("admin_request",
	`New Reservation Request: {{.Reservation.Date}} {{.Reservation.Time}}`,
	`A new reservation request has been received:

Reservation ID: {{.Reservation.ID}}
Name: {{.Reservation.Name}}
Email: {{.Reservation.Email}}
Date: {{.Reservation.Date}}
Time: {{.Reservation.Time}}
Duration: {{.Reservation.Duration}}

Approve: {{.ApproveLink}}
Reject: {{.RejectLink}}
`,
	`<p>A new reservation request has been received:</p>
<ul>
  <li><strong>Reservation ID:</strong> {{.Reservation.ID}}</li>
  <li><strong>Name:</strong> {{.Reservation.Name}}</li>
  <li><strong>Email:</strong> {{.Reservation.Email}}</li>
  <li><strong>Date:</strong> {{.Reservation.Date}}</li>
  <li><strong>Time:</strong> {{.Reservation.Time}}</li>
  <li><strong>Duration:</strong> {{.Reservation.Duration}}</li>
</ul>
<p><a href="{{.ApproveLink}}" style="color: green;">APPROVE</a> |
  <a href="{{.RejectLink}}" style="color: red;">REJECT</a></p>
`)

var approvedTemplate = newMailTemplate("approved",
	`Your Reservation Has Been Approved!`,
	`Hello {{.Reservation.Name}},

Your reservation for {{.Reservation.Date}} at {{.Reservation.Time}} has been approved.

Approved by: {{.Reservation.ApprovedBy}}
Reservation ID: {{.Reservation.ID}}

See you there!
`,
	`<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2 style="color: #2ecc71;">Reservation Approved!</h2>
  <p>Hello {{.Reservation.Name}},</p>
  <p>Your reservation for <strong>{{.Reservation.Date}}</strong> at <strong>{{.Reservation.Time}}</strong> has been approved.</p>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 15px 0;">
    <p><strong>Approved by:</strong> {{.Reservation.ApprovedBy}}</p>
    <p><strong>Reservation ID:</strong> {{.Reservation.ID}}</p>
  </div>
  <p style="color: #7f8c8d; font-size: 0.9em;">If you have any questions, please reply to this email.</p>
</div>
`)

var rejectedTemplate = newMailTemplate("rejected",
	`Your Reservation Request Was Declined`,
	`Hello {{.Reservation.Name}},

Unfortunately your reservation request for {{.Reservation.Date}} at {{.Reservation.Time}} could not be accepted.

Reservation ID: {{.Reservation.ID}}

Feel free to request another time slot.
`,
	`<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2 style="color: #e74c3c;">Reservation Declined</h2>
  <p>Hello {{.Reservation.Name}},</p>
  <p>Unfortunately your reservation request for <strong>{{.Reservation.Date}}</strong> at <strong>{{.Reservation.Time}}</strong> could not be accepted.</p>
  <p><strong>Reservation ID:</strong> {{.Reservation.ID}}</p>
  <p>Feel free to request another time slot.</p>
</div>
`)
