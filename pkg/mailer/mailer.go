package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc matches smtp.SendMail so tests can capture outgoing mail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers messages through a single SMTP relay.
type SMTPMailer struct {
	cfg  Config
	send sendFunc
}

// NewSMTPMailer builds a mailer for the given relay.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send writes a single message. The context bounds only the wait before dialing since
// net/smtp has no context-aware API.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, m.encode(msg)); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) encode(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return buf.Bytes()
}

// Template pairs a subject and body template.
type Template struct {
	subject *template.Template
	body    *template.Template
}

// Templates renders messages by name.
type Templates struct {
	byName map[string]Template
}

// NewTemplates parses the subject/body pairs keyed by name.
func NewTemplates(sources map[string][2]string) (*Templates, error) {
	set := &Templates{byName: make(map[string]Template, len(sources))}
	for name, src := range sources {
		subject, err := template.New(name + ".subject").Option("missingkey=zero").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=zero").Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", name, err)
		}
		set.byName[name] = Template{subject: subject, body: body}
	}
	return set, nil
}

// Render produces a message for the recipient using the named template.
func (t *Templates) Render(name, to string, data map[string]string) (Message, error) {
	tpl, ok := t.byName[name]
	if !ok {
		return Message{}, fmt.Errorf("mailer: unknown template %q", name)
	}
	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", name, err)
	}
	return Message{To: to, Subject: strings.TrimSpace(subject.String()), Body: body.String()}, nil
}
