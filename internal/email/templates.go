package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type reminderEmailData struct {
	baseEmailData
	CustomerName  string
	Body          string
	InvoiceNumber string
	Amount        string
	DueDate       string
}

type consolidatedLine struct {
	Number      string
	Amount      string
	DueDate     string
	DaysOverdue int
}

type consolidatedEmailData struct {
	baseEmailData
	CustomerName string
	Invoices     []consolidatedLine
	TotalAmount  string
}

type managerAlertEmailData struct {
	baseEmailData
	InvoiceID string
	Reason    string
}

func renderEmailTemplate(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
