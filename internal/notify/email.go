package notify

import (
	mail "gopkg.in/mail.v2"
)

// EmailTransport delivers notifications over SMTP.
type EmailTransport struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmailTransport creates an SMTP-backed Transport.
func NewEmailTransport(host string, port int, username, password, from string) *EmailTransport {
	return &EmailTransport{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers one message. Dialing per send keeps the transport stateless;
// batch sizes here are small enough that connection reuse is not worth the
// bookkeeping.
func (t *EmailTransport) Send(to, subject, body string) error {
	message := mail.NewMessage()

	message.SetHeader("From", t.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", body)

	dialer := mail.NewDialer(t.host, t.port, t.username, t.password)

	return dialer.DialAndSend(message)
}
