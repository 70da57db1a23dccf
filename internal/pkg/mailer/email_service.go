package mailer

import (
	"fmt"

	"finsight-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendWelcome(toEmail, name string) error
	SendResetLink(toEmail, token string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	clientURL   string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderName, clientURL string, log logger.ILogger) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
		clientURL:   clientURL,
		logger:      log,
	}
}

func (s *emailService) send(toEmail, subject, body string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("Mailer", "Failed to send email", map[string]interface{}{
			"to":      toEmail,
			"subject": subject,
			"error":   err.Error(),
		})
		return err
	}
	s.logger.Info("Mailer", "Email sent", map[string]interface{}{"to": toEmail, "subject": subject})
	return nil
}

func (s *emailService) SendWelcome(toEmail, name string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Welcome to Finsight, %s!</h2>
			<p>Your account is ready. Ask about markets, tickers and filings at any time:</p>
			<a href="%s/chat" style="background-color: #0F766E; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Open Finsight</a>
		</div>
	`, name, s.clientURL)
	return s.send(toEmail, "Welcome to Finsight", body)
}

func (s *emailService) SendResetLink(toEmail, token string) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.clientURL, token)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Password Reset Request</h2>
			<p>You requested to reset your password. Click the button below to proceed:</p>
			<a href="%s" style="background-color: #0F766E; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Reset Password</a>
			<p>Or copy this link:</p>
			<p>%s</p>
			<p>This link will expire in 1 hour.</p>
			<p>If you didn't request this, please ignore this email.</p>
		</div>
	`, resetLink, resetLink)
	return s.send(toEmail, "Reset Your Password", body)
}
