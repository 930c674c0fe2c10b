package mailer

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Body    string
}

// Mailer delivers messages through a configured backend.
type Mailer interface {
	Send(msg Message) error
}

// New selects the backend from configuration. Unknown backends fall back to
// the console mailer so development environments never need credentials.
func New(cfg config.MailerConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backend == "sendgrid" && cfg.SendGridAPIKey != "" {
		return &SendGridMailer{cfg: cfg, logger: logger}
	}
	return &ConsoleMailer{logger: logger}
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	cfg    config.MailerConfig
	logger *zap.Logger
}

// Send submits the message and treats any non-2xx response as a failure.
func (m *SendGridMailer) Send(msg Message) error {
	from := sgmail.NewEmail(m.cfg.FromName, m.cfg.FromAddress)
	to := sgmail.NewEmail(msg.ToName, msg.ToEmail)
	mail := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.Body)

	req := sendgrid.GetRequest(m.cfg.SendGridAPIKey, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(mail)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}

	m.logger.Debug("email delivered", zap.String("to", msg.ToEmail), zap.String("subject", msg.Subject))
	return nil
}

// ConsoleMailer logs messages instead of delivering them.
type ConsoleMailer struct {
	logger *zap.Logger
}

// Send writes the message to the application log.
func (m *ConsoleMailer) Send(msg Message) error {
	m.logger.Info("email (console backend)",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}
