// pantry/email/email.go
// Package email sends mail over SMTP through github.com/wneessen/go-mail.
package email

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/inquiry/pantry/retry"
	"github.com/wneessen/go-mail"
)

// Security selects how the SMTP connection is protected.
type Security string

const (
	// SecuritySSL is implicit TLS from the first byte (port 465).
	SecuritySSL Security = "ssl"
	// SecurityStartTLS upgrades a plain connection and refuses to continue without TLS (port 587).
	SecurityStartTLS Security = "starttls"
	// SecurityNone sends in the clear. Local relays and tests only.
	SecurityNone Security = "none"
)

var (
	ErrNoRecipients = errors.New("email: no recipients specified")
	ErrEmptyBody    = errors.New("email: message body is empty")
	ErrNoHost       = errors.New("email: smtp host is empty")
)

// ParseSecurity maps a config string to a Security. Empty means ssl.
func ParseSecurity(s string) (Security, error) {
	switch Security(strings.ToLower(strings.TrimSpace(s))) {
	case "", SecuritySSL:
		return SecuritySSL, nil
	case SecurityStartTLS:
		return SecurityStartTLS, nil
	case SecurityNone:
		return SecurityNone, nil
	}
	return "", fmt.Errorf("email: unknown security mode %q (want ssl, starttls or none)", s)
}

// Config holds SMTP server configuration.
type Config struct {
	Host     string
	Port     int // 0 picks 465 for ssl, 587 for starttls, 25 for none
	Username string
	Password string

	FromAddress string
	FromName    string // optional display name

	Security Security
	Timeout  time.Duration // per send, retries included; default 15s

	// Attempts is how many times a send is tried when the server answers
	// with a temporary (4xx) failure. Default 1.
	Attempts int
}

// Message is one outbound mail.
type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string // sent as a text/html alternative when TextBody is also set
	ReplyTo  string

	// Headers are extra generic headers (e.g. Auto-Submitted).
	Headers map[string]string
}

// Sender delivers a Message. *SMTPSender is the production implementation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender dials the configured server once per Send.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender fills defaults and checks the config.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, ErrNoHost
	}
	if cfg.Security == "" {
		cfg.Security = SecuritySSL
	}
	if _, err := ParseSecurity(string(cfg.Security)); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		switch cfg.Security {
		case SecuritySSL:
			cfg.Port = 465
		case SecurityStartTLS:
			cfg.Port = 587
		default:
			cfg.Port = 25
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send builds msg and delivers it. The context bounds the whole exchange in
// addition to the configured Timeout.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	policy := retry.Config{
		MaxAttempts:  s.cfg.Attempts,
		InitialDelay: 500 * time.Millisecond,
		Jitter:       0.1,
		RetryIf:      isTemporary,
	}
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		c, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
		if err != nil {
			return retry.PermanentError(fmt.Errorf("create client: %w", err))
		}
		return c.DialAndSendWithContext(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}
	return nil
}

// isTemporary reports whether the server rejected the message with a 4xx
// reply, which means it was not accepted and may be sent again.
func isTemporary(err error) bool {
	var se *mail.SendError
	return errors.As(err, &se) && se.IsTemp()
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	switch s.cfg.Security {
	case SecuritySSL:
		opts = append(opts, mail.WithSSL())
	case SecurityStartTLS:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case SecurityNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	return opts
}

// build turns msg into a go-mail message without touching the network.
func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		return nil, ErrEmptyBody
	}

	m := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.FromAddress); err != nil {
			return nil, fmt.Errorf("email: invalid from address: %w", err)
		}
	} else if err := m.From(s.cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("email: invalid from address: %w", err)
	}

	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("email: invalid to address: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("email: invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)

	// Stable header order keeps rendered output deterministic.
	names := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		m.SetGenHeader(mail.Header(k), msg.Headers[k])
	}

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	return m, nil
}
