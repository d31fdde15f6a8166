package services

import (
	"context"
	"fmt"

	"receiptmaker/internal/config"
	"receiptmaker/internal/logger"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mail is one outgoing message.
type Mail struct {
	To             string
	Subject        string
	HTML           string
	UnsubscribeURL string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	if m.UnsubscribeURL != "" {
		msg.SetHeader("List-Unsubscribe", "<"+m.UnsubscribeURL+">")
	}
	msg.SetBody("text/html", m.HTML)
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return nil
}

// LogMailer writes mails to the log instead of sending them.
type LogMailer struct {
	log logrus.FieldLogger
}

func NewLogMailer(log logrus.FieldLogger) *LogMailer {
	if log == nil {
		log = logger.Get()
	}
	return &LogMailer{log: log}
}

func (l *LogMailer) Send(_ context.Context, m Mail) error {
	l.log.WithFields(logrus.Fields{
		"module":      "services",
		"funcName":    "LogMailer.Send",
		"to":          m.To,
		"subject":     m.Subject,
		"unsubscribe": m.UnsubscribeURL,
	}).Info("mail not sent: SMTP is not configured")
	return nil
}
