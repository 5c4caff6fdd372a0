package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendWelcomeEmail(toEmail, toName, accountURL string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Welcome to the Wanderpeak family!"
	html := fmt.Sprintf(`
		<h2>Welcome to Wanderpeak, %s!</h2>
		<p>We're glad to have you on board.</p>
		<p>You can manage your profile and bookings from your account page:</p>
		<p><a href="%s" style="background-color: #55c57a; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Go to my account</a></p>
		<p>Happy travelling!</p>
	`, toName, accountURL)

	text := fmt.Sprintf("Welcome to Wanderpeak, %s! Manage your account here: %s", toName, accountURL)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) SendPasswordResetEmail(toEmail, toName, resetURL string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your password reset token (valid for only 10 minutes)"
	html := fmt.Sprintf(`
		<h2>Forgot your password?</h2>
		<p>Hi %s,</p>
		<p>Submit a new password using the link below:</p>
		<p><a href="%s" style="background-color: #55c57a; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset my password</a></p>
		<p>This link expires in 10 minutes.</p>
		<p>If you didn't forget your password, please ignore this email.</p>
	`, toName, resetURL)

	text := fmt.Sprintf("Forgot your password? Submit a new one here: %s\n\nIf you didn't forget your password, please ignore this email.", resetURL)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
