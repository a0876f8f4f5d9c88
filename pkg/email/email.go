package email

import (
	"fmt"
	"net/smtp"
	"os"
)

// Notifier delivers account emails. The core treats delivery as
// fire-and-forget: callers log failures and never block on them.
type Notifier interface {
	SendVerificationEmail(to, name, token string) error
	SendPasswordResetEmail(to, name, token string) error
}

// SMTPNotifier sends account emails over plain SMTP.
type SMTPNotifier struct {
	baseURL string
}

// NewSMTPNotifier creates a Notifier whose links point at baseURL.
func NewSMTPNotifier(baseURL string) *SMTPNotifier {
	return &SMTPNotifier{baseURL: baseURL}
}

func (n *SMTPNotifier) SendVerificationEmail(to, name, token string) error {
	link := fmt.Sprintf("%s/users/verify?token=%s", n.baseURL, token)
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to Nexar!\n\nPlease verify your email by clicking the link below:\n%s",
		name, link,
	)
	return SendEmail(to, "Verify your Nexar account", body)
}

func (n *SMTPNotifier) SendPasswordResetEmail(to, name, token string) error {
	link := fmt.Sprintf("%s/users/reset-password?token=%s", n.baseURL, token)
	body := fmt.Sprintf(
		"Hi %s,\n\nClick the link below to reset your Nexar password:\n\n%s\n\nThe link expires in one hour.",
		name, link,
	)
	return SendEmail(to, "Reset your Nexar password", body)
}

// SendEmail sends a plain text email using SMTP.
func SendEmail(to, subject, body string) error {
	from := os.Getenv("SMTP_SENDER")
	password := os.Getenv("SMTP_PASSWORD")
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")

	auth := smtp.PlainAuth("", from, password, smtpHost)

	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	address := smtpHost + ":" + smtpPort

	err := smtp.SendMail(address, auth, from, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
