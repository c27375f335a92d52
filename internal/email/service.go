package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/jwalitptl/clinic-api/pkg/i18n"
	"github.com/jwalitptl/clinic-api/pkg/mailer"
)

// Invitation is the data rendered into an invitation email.
type Invitation struct {
	To          string
	ClinicName  string
	InviterName string
	Role        string
	AcceptURL   string
	ExpiresAt   time.Time
	Language    string
}

type Service interface {
	SendInvitation(ctx context.Context, inv Invitation) error
}

var invitationHTML = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<p>{{.Body}}</p>
<p><a href="{{.AcceptURL}}" style="padding: 10px 16px; background: #7c3aed; color: #fff; text-decoration: none; border-radius: 4px;">{{.Action}}</a></p>
<p style="color: #666; font-size: 12px;">{{.AcceptURL}}</p>
</body>
</html>`))

type service struct {
	mailer mailer.Mailer
}

func NewService(m mailer.Mailer) Service {
	return &service{mailer: m}
}

func (s *service) SendInvitation(ctx context.Context, inv Invitation) error {
	lang := i18n.Match(inv.Language)
	body := fmt.Sprintf(i18n.Translate(lang, i18n.MsgInvitationBody),
		inv.InviterName, inv.ClinicName, inv.Role, inv.ExpiresAt.Format("2006-01-02"))
	action := i18n.Translate(lang, i18n.MsgInvitationAction)

	var html bytes.Buffer
	err := invitationHTML.Execute(&html, struct {
		Body, Action, AcceptURL string
	}{body, action, inv.AcceptURL})
	if err != nil {
		return fmt.Errorf("failed to render invitation email: %w", err)
	}

	return s.mailer.Send(ctx, mailer.Message{
		To:       inv.To,
		Subject:  fmt.Sprintf(i18n.Translate(lang, i18n.MsgInvitationSubject), inv.ClinicName),
		HTMLBody: html.String(),
		TextBody: body + "\n\n" + action + ": " + inv.AcceptURL + "\n",
	})
}
