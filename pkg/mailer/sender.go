package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender delivers rendered tasks over SMTP.
type Sender struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
}

func NewSender(host string, port int, username, password, from, baseURL string) *Sender {
	return &Sender{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		baseURL: baseURL,
	}
}

// Send renders and delivers one task.
func (s *Sender) Send(task Task) error {
	var subject, body string
	switch task.Kind {
	case TaskConfirmEmail:
		subject = "Confirm your email"
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>Confirm your email address by following "+
				"<a href=%q>this link</a>.</p>",
			task.Name, s.baseURL+"/api/v1/public/confirm-email?token="+task.Token)
	case TaskPasswordReset:
		subject = "Password reset request"
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>Someone requested a password reset for your "+
				"account. If that was you, follow <a href=%q>this link</a>. "+
				"Otherwise ignore this message.</p>",
			task.Name, s.baseURL+"/reset-password?token="+task.Token)
	default:
		return fmt.Errorf("unknown email task kind %q", task.Kind)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", task.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return s.dialer.DialAndSend(m)
}
