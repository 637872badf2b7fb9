package services

import (
	"fmt"
	"time"

	"github.com/luminahost/backend/internal/logger"
	"go.uber.org/zap"
)

// Mail is a queued outbound email
type Mail struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Outbox decouples email delivery from the workflows that trigger it.
// Enqueue never blocks and never fails the caller; delivery happens on a
// worker goroutine with bounded retries.
type Outbox struct {
	mail  *EmailService
	queue chan Mail
	stop  chan struct{}
	done  chan struct{}
}

// NewOutbox creates an outbox over the given email service
func NewOutbox(mail *EmailService) *Outbox {
	return &Outbox{
		mail:  mail,
		queue: make(chan Mail, 256),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the delivery worker
func (o *Outbox) Start() {
	go o.worker()
}

// Stop drains nothing; queued mail not yet delivered is dropped
func (o *Outbox) Stop() {
	close(o.stop)
	<-o.done
}

// Enqueue queues a mail for delivery. Drops with a log line when the queue
// is full so callers never block.
func (o *Outbox) Enqueue(m Mail) {
	select {
	case o.queue <- m:
	default:
		logger.Warn("mail outbox full, dropping message", zap.String("to", m.To), zap.String("subject", m.Subject))
	}
}

func (o *Outbox) worker() {
	defer close(o.done)
	for {
		select {
		case <-o.stop:
			return
		case m := <-o.queue:
			o.deliver(m)
		}
	}
}

func (o *Outbox) deliver(m Mail) {
	if !o.mail.Configured() {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = o.mail.Send(m.To, m.Subject, m.Body, m.HTML)
		if err == nil {
			return
		}
		select {
		case <-o.stop:
			return
		case <-time.After(time.Duration(attempt) * 5 * time.Second):
		}
	}
	logger.Error("mail delivery failed",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Error(err),
	)
}

// VerificationMail carries an email-verification code
func VerificationMail(to, code string) Mail {
	return Mail{
		To:      to,
		Subject: "LuminaHost - Verify your email",
		Body: fmt.Sprintf(`<p>Your verification code is:</p><h2>%s</h2>
<p>The code expires in 15 minutes.</p>`, code),
		HTML: true,
	}
}

// ResetMail carries a password-reset code
func ResetMail(to, code string) Mail {
	return Mail{
		To:      to,
		Subject: "LuminaHost - Password reset",
		Body: fmt.Sprintf(`<p>Your password reset code is:</p><h2>%s</h2>
<p>The code expires in 15 minutes. If you did not request a reset, ignore this email.</p>`, code),
		HTML: true,
	}
}

// PanelCredentialsMail carries freshly generated panel credentials
func PanelCredentialsMail(to, username, password string) Mail {
	return Mail{
		To:      to,
		Subject: "LuminaHost - Your game panel access",
		Body: fmt.Sprintf(`<p>A game panel account was created for you.</p>
<p>Username: <b>%s</b><br>Password: <b>%s</b></p>
<p>Please change the password after your first login.</p>`, username, password),
		HTML: true,
	}
}

// ExpiryNoticeMail warns about a server expiring within a day
func ExpiryNoticeMail(to, serverName string, expiresAt time.Time) Mail {
	return Mail{
		To:      to,
		Subject: "LuminaHost - Server expiring soon",
		Body: fmt.Sprintf(`<p>Your server <b>%s</b> expires at %s.</p>
<p>Renew it or enable auto-renewal to avoid suspension.</p>`,
			serverName, expiresAt.Format("2006-01-02 15:04 MST")),
		HTML: true,
	}
}
