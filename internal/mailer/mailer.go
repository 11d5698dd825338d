// Package mailer renders and delivers ticket emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// QRContentID is the Content-ID of the inline QR image; templates reference it as cid:qrcode.
const QRContentID = "qrcode"

// Message is a rendered ticket email.
type Message struct {
	To      string
	Subject string
	HTML    string
	QRPNG   []byte
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender sends through an SMTP relay with gomail.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	logger *zap.Logger
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// Send dials the relay and delivers msg. The QR image is embedded inline.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	s.logger.Debug("email sent", zap.String("to", msg.To))
	return nil
}

func (s *SMTPSender) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	if len(msg.QRPNG) > 0 {
		png := msg.QRPNG
		m.Embed(QRContentID+".png",
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(png)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-ID":   {"<" + QRContentID + ">"},
				"Content-Type": {"image/png"},
			}),
		)
	}
	return m
}

// LogSender only logs messages. It is used when SMTP is not configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs msg and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, SMTP not configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("qr_bytes", len(msg.QRPNG)),
	)
	return nil
}

// TicketData fills the ticket email template.
type TicketData struct {
	EventName string
	Name      string
	UniqueID  string
}

var ticketTemplate = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <p>Hi {{.Name}},</p>
  <p>Here is your entry ticket for <strong>{{.EventName}}</strong>.</p>
  <p>Show this QR code at the registration desk. Your participant ID is <strong>{{.UniqueID}}</strong>.</p>
  <p><img src="cid:qrcode" alt="QR code for {{.UniqueID}}" width="300" height="300"></p>
  <p>The code works once. If you request a new ticket, earlier codes stop working.</p>
</body>
</html>`))

// RenderTicket builds the ticket email for one participant.
func RenderTicket(to string, data TicketData, qrPNG []byte) (Message, error) {
	var buf bytes.Buffer
	if err := ticketTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render ticket email: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Your ticket for " + data.EventName,
		HTML:    buf.String(),
		QRPNG:   qrPNG,
	}, nil
}
