// Package mailer delivers transactional email. The concrete transport is
// picked from configuration: dev mode logs, MailerSend when an API key is
// set, plain SMTP otherwise.
package mailer

import (
	"github.com/wanderpeak/tours-api/pkg/config"
)

func New(cfg config.EmailConfig) Service {
	if cfg.DevMode {
		return NewDevMailer()
	}
	if cfg.MailerSendKey != "" {
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	}
	return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
}
