package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplatesRender(t *testing.T) {
	tpls, err := NewTemplates(map[string][2]string{
		"approved": {"Request {{.request_id}} approved", "Hello {{.name}},\nyour request for {{.plot_id}} was approved."},
	})
	require.NoError(t, err)

	msg, err := tpls.Render("approved", "a@example.com", map[string]string{"request_id": "r1", "name": "Ana", "plot_id": "rb-l3-k1"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, "Request r1 approved", msg.Subject)
	assert.Contains(t, msg.Body, "rb-l3-k1")

	_, err = tpls.Render("missing", "a@example.com", nil)
	assert.Error(t, err)
}

func TestSMTPMailerSend(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "smtp.local", Port: 2525, From: "noreply@cemetery.local"})
	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Hi\r\n")
	assert.Contains(t, string(gotMsg), "line1\r\nline2")
}

func TestSMTPMailerSendErrors(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "smtp.local", Port: 25})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay down") }

	assert.Error(t, m.Send(context.Background(), Message{To: " "}))
	err := m.Send(context.Background(), Message{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}
