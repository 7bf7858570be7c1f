package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendApprovalPending(toEmail, sessionID, riskLevel string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	consoleURL  string
}

func NewEmailService(host string, port int, username, password, senderName, consoleURL string) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
		consoleURL:  consoleURL,
	}
}

func (s *emailService) SendApprovalPending(toEmail, sessionID, riskLevel string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Orchestration session awaiting your approval")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Approval required</h2>
			<p>Session <code>%s</code> paused before its final phase and needs a decision.</p>
			<p>Assessed risk level: <strong>%s</strong></p>
			<p><a href="%s/sessions/%s">Review the session preview</a> to approve or reject it.</p>
		</div>
	`, sessionID, riskLevel, s.consoleURL, sessionID)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send approval mail to %s: %w", toEmail, err)
	}
	return nil
}
