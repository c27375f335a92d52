package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureDialer struct {
	messages []*gomail.Message
	err      error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.messages = append(d.messages, m...)
	return d.err
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	d := &captureDialer{}
	m := &SMTPMailer{dialer: d, from: "no-reply@clinic.test", name: "Clinic"}

	err := m.Send(context.Background(), Message{
		To:       "ana@example.com",
		Subject:  "You're invited",
		TextBody: "hello",
		HTMLBody: "<p>hello</p>",
	})
	require.NoError(t, err)
	require.Len(t, d.messages, 1)

	assert.Equal(t, []string{"ana@example.com"}, d.messages[0].GetHeader("To"))
	assert.Equal(t, []string{"You're invited"}, d.messages[0].GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = d.messages[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
}

func TestSMTPMailerWrapsErrors(t *testing.T) {
	m := &SMTPMailer{dialer: &captureDialer{err: errors.New("dial tcp: refused")}}
	err := m.Send(context.Background(), Message{To: "a@b.co", HTMLBody: "x"})
	assert.ErrorContains(t, err, "failed to send email to a@b.co")
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	d := &captureDialer{}
	m := &SMTPMailer{dialer: d}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@b.co"}), context.Canceled)
	assert.Empty(t, d.messages)
}

func TestLogMailerRecords(t *testing.T) {
	m := &LogMailer{}
	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.co"}))
	assert.Len(t, m.Sent, 1)
}
