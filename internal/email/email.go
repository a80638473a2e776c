// Package email sends transactional mail through Resend. Every send is
// best-effort: callers log failures and carry on, mail never blocks a
// signup or a payment.
package email

import (
	"fmt"
	"log"
	"time"

	"github.com/resend/resend-go/v3"
)

// Mailer sends transactional email
type Mailer struct {
	client    *resend.Client
	from      string
	clientURL string
}

// NewMailer creates a mailer. An empty API key disables sending, which
// keeps local development quiet.
func NewMailer(apiKey, from, clientURL string) *Mailer {
	m := &Mailer{from: from, clientURL: clientURL}
	if apiKey != "" {
		m.client = resend.NewClient(apiKey)
	} else {
		log.Println("[EMAIL] No API key configured, outbound mail disabled")
	}
	return m
}

func (m *Mailer) send(to, subject, html string) error {
	if m.client == nil {
		log.Printf("[EMAIL] Skipping send to %s (%s): mail disabled", to, subject)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := m.client.Emails.Send(params)
	if err != nil {
		return err
	}
	log.Printf("[EMAIL] Sent %q to %s (id %s)", subject, to, sent.Id)
	return nil
}

// SendVerificationEmail sends the signup verification link
func (m *Mailer) SendVerificationEmail(to, name, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.clientURL, token)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Welcome to StreamTheme! Please confirm your email address to activate your account.</p>
<p><a href="%s">Verify my email</a></p>
<p>If you did not create this account, you can ignore this message.</p>`, name, link)
	return m.send(to, "Verify your StreamTheme account", html)
}

// SendTrialStartedEmail confirms trial activation
func (m *Mailer) SendTrialStartedEmail(to, name string, expiry time.Time) error {
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your free trial is live. You have full access to the standard layout until <b>%s</b>.</p>
<p><a href="%s/dashboard">Open your dashboard</a></p>`,
		name, expiry.Format("Jan 2, 2006 15:04 MST"), m.clientURL)
	return m.send(to, "Your StreamTheme trial has started", html)
}

// SendSubscriptionActivatedEmail confirms a successful payment
func (m *Mailer) SendSubscriptionActivatedEmail(to, name, planName string, expiry time.Time) error {
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Thanks for subscribing! Your <b>%s</b> plan is active until <b>%s</b>.</p>
<p><a href="%s/dashboard">Open your dashboard</a></p>`,
		name, planName, expiry.Format("Jan 2, 2006"), m.clientURL)
	return m.send(to, "Your StreamTheme subscription is active", html)
}

// SendPasswordResetEmail sends the password reset link
func (m *Mailer) SendPasswordResetEmail(to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.clientURL, token)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your password. The link below is valid for one hour.</p>
<p><a href="%s">Reset my password</a></p>
<p>If you did not request this, you can ignore this message.</p>`, name, link)
	return m.send(to, "Reset your StreamTheme password", html)
}
