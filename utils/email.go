package utils

import (
	"log"
	"os"

	"gopkg.in/gomail.v2"
)

// Mailer is the mail-sending collaborator handlers depend on. Tests swap in
// a recording fake.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends plain-text mail through the configured SMTP server.
type SMTPMailer struct{}

func (SMTPMailer) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", os.Getenv("SENDER_EMAIL"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(
		os.Getenv("SMTP_HOST"),
		465,
		os.Getenv("SMTP_USER"),
		os.Getenv("SMTP_PASS"),
	)

	if err := d.DialAndSend(m); err != nil {
		log.Printf("Failed to send email to %s: %v", to, err)
		return err
	}

	return nil
}
