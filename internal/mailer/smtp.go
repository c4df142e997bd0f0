package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/mail.v2"
)

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type SMTPClient struct {
	dialer    dialer
	fromEmail string
	backoff   time.Duration
}

func NewSMTPClient(host string, port int, username, password, fromEmail string) (*SMTPClient, error) {
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if fromEmail == "" {
		return nil, errors.New("from email is required")
	}
	d := mail.NewDialer(host, port, username, password)
	d.Timeout = 10 * time.Second
	return &SMTPClient{dialer: d, fromEmail: fromEmail, backoff: time.Second}, nil
}

// Send renders the "subject" and "body" blocks of templateFile and delivers
// the message, retrying with a linear backoff.
func (c *SMTPClient) Send(templateFile, username, email string, data any) (int, error) {
	subject, body, err := render(templateFile, data)
	if err != nil {
		return -1, err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", c.fromEmail, FromName)
	msg.SetAddressHeader("To", email, username)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	for i := 0; i < maxRetries; i++ {
		if err = c.dialer.DialAndSend(msg); err == nil {
			return 200, nil
		}
		time.Sleep(c.backoff * time.Duration(i+1))
	}
	return -1, fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, err)
}

func render(templateFile string, data any) (string, string, error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", err
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return "", "", err
	}
	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "body", data); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}
