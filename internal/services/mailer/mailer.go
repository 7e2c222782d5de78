// Package mailer defines the outbound email seam used by notifications.
package mailer

import (
	"bugtracker/internal/config"

	"gopkg.in/mail.v2"
)

// Sender delivers composed messages. *mail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// NewSMTPSender returns a dialer for cfg, or nil when no SMTP host is configured
func NewSMTPSender(cfg config.SMTPConfig) Sender {
	if cfg.Host == "" {
		return nil
	}
	return mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

// RecordingSender keeps every message instead of sending it
type RecordingSender struct {
	Messages []*mail.Message
	Err      error
}

// DialAndSend records m and returns the configured error
func (r *RecordingSender) DialAndSend(m ...*mail.Message) error {
	if r.Err != nil {
		return r.Err
	}
	r.Messages = append(r.Messages, m...)
	return nil
}

var (
	_ Sender = (*mail.Dialer)(nil)
	_ Sender = (*RecordingSender)(nil)
)
