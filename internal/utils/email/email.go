package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/olatech/account-service/internal/config"
)

// Message is an outbound email, held in the queue until delivered
type Message struct {
	To       string
	Subject  string
	HTML     string
	Attempts int
}

// Sender handles sending emails via SMTP
type Sender struct {
	cfg       *config.Config
	logger    *logrus.Logger
	templates *template.Template
}

// NewSender creates a new email sender with parsed templates
func NewSender(cfg *config.Config, logger *logrus.Logger) (*Sender, error) {
	tmpl, err := template.New("emails").Parse(emailTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Sender{
		cfg:       cfg,
		logger:    logger,
		templates: tmpl,
	}, nil
}

// VerificationMessage builds the account verification email
func (s *Sender) VerificationMessage(to, firstName, link string) (Message, error) {
	body, err := s.render("verification", linkData{FirstName: firstName, Link: link})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Email Verification", HTML: body}, nil
}

// PasswordResetMessage builds the password reset email
func (s *Sender) PasswordResetMessage(to, firstName, link string) (Message, error) {
	body, err := s.render("password_reset", linkData{FirstName: firstName, Link: link})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Password Reset", HTML: body}, nil
}

// Send delivers a single message over SMTP
func (s *Sender) Send(msg Message) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", msg.To, msg.Subject)
	return nil
}

func (s *Sender) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}

type linkData struct {
	FirstName string
	Link      string
}
