package email

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/weddify/binks/internal/model"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// SendCredentialDelivery mails the buyer the credentials delivered for a
// completed order. o must carry its sold stock items.
func (s *Service) SendCredentialDelivery(to string, o *model.Order) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("order %s has no buyer email", o.ID)
	}
	subject := fmt.Sprintf("Your order %s is ready", o.ID)
	return s.send(to, subject, BuildCredentialDeliveryBody(o))
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, mime.QEncoding.Encode("utf-8", subject), body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
