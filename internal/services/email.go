package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/luminahost/backend/internal/config"
)

// EmailService handles sending emails via SMTP
type EmailService struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewEmailService creates a new email service from configuration
func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPass,
		from:     cfg.SMTPFrom,
	}
}

// Configured reports whether SMTP settings are present
func (s *EmailService) Configured() bool {
	return s.host != "" && s.port != ""
}

// Send sends a single email
func (s *EmailService) Send(to, subject, body string, isHTML bool) error {
	if !s.Configured() {
		return fmt.Errorf("SMTP not configured")
	}

	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", s.from, to, subject, contentType, body)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	// Port decides the handshake: 465 direct TLS, 587/25 STARTTLS
	useTLS := s.port == "465"
	useStartTLS := s.port == "587" || s.port == "25"

	var auth smtp.Auth
	if s.username != "" && s.password != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if useTLS {
		return s.sendWithTLS(addr, auth, to, []byte(msg))
	} else if useStartTLS {
		return s.sendWithStartTLS(addr, auth, to, []byte(msg))
	}
	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg))
}

// sendWithTLS sends email using direct TLS (port 465)
func (s *EmailService) sendWithTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: s.host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial failed: %v", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("SMTP client failed: %v", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %v", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %v", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %v", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %v", err)
	}

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("Write failed: %v", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("Close failed: %v", err)
	}

	return client.Quit()
}

// sendWithStartTLS sends email using STARTTLS (port 587)
func (s *EmailService) sendWithStartTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("SMTP dial failed: %v", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("HELLO failed: %v", err)
	}

	tlsConfig := &tls.Config{
		ServerName: s.host,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("STARTTLS failed: %v", err)
	}

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %v", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %v", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %v", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %v", err)
	}

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("Write failed: %v", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("Close failed: %v", err)
	}

	return client.Quit()
}
