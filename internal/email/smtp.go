package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP
// connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendReminder delivers one individual follow-up email.
func (s *SMTPSender) SendReminder(ctx context.Context, p ReminderParams) (uuid.UUID, error) {
	subject := p.Subject
	if subject == "" {
		subject = reminderSubject(p.Tone, p.InvoiceNumber)
	}

	content, err := renderEmailTemplate("reminder.html", reminderEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  reminderHeading(p.Tone),
			CTALabel: "Pay now",
			CTAURL:   p.PaymentURL,
		},
		CustomerName:  p.ToName,
		Body:          p.Body,
		InvoiceNumber: p.InvoiceNumber,
		Amount:        formatAmount(p.Amount, p.Currency),
		DueDate:       p.DueDate.Format("2 January 2006"),
	})
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.send(ctx, p.ToEmail, subject, content); err != nil {
		return uuid.Nil, err
	}
	return uuid.New(), nil
}

// SendConsolidatedReminder delivers one reminder covering several
// invoices.
func (s *SMTPSender) SendConsolidatedReminder(ctx context.Context, p ConsolidatedParams) (uuid.UUID, error) {
	subject := consolidatedSubject(p.TemplateTier, len(p.Invoices))

	lines := make([]consolidatedLine, len(p.Invoices))
	for i, inv := range p.Invoices {
		lines[i] = consolidatedLine{
			Number:      inv.Number,
			Amount:      formatAmount(inv.Amount, p.Currency),
			DueDate:     inv.DueDate.Format("2 January 2006"),
			DaysOverdue: inv.DaysOverdue,
		}
	}

	content, err := renderEmailTemplate("consolidated.html", consolidatedEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  consolidatedHeading(p.TemplateTier),
			CTALabel: "Settle all invoices",
			CTAURL:   p.PaymentURL,
		},
		CustomerName: p.ToName,
		Invoices:     lines,
		TotalAmount:  formatAmount(p.TotalAmount, p.Currency),
	})
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.send(ctx, p.ToEmail, subject, content); err != nil {
		return uuid.Nil, err
	}
	return uuid.New(), nil
}

// SendManagerAlert notifies a manager that an invoice needs attention.
func (s *SMTPSender) SendManagerAlert(ctx context.Context, toEmail string, invoiceID uuid.UUID, reason string) error {
	subject := fmt.Sprintf(subjectManagerAlertFmt, invoiceID)
	content, err := renderEmailTemplate("manager_alert.html", managerAlertEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: "Invoice needs attention",
		},
		InvoiceID: invoiceID.String(),
		Reason:    reason,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func formatAmount(amount float64, currency string) string {
	if currency == "" {
		currency = "AED"
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}
