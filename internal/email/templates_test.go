package email

import (
	"strings"
	"testing"
)

func TestRenderReminderTemplate(t *testing.T) {
	html, err := renderEmailTemplate("reminder.html", reminderEmailData{
		baseEmailData: baseEmailData{
			Title:    "Payment reminder for invoice INV-100",
			Heading:  "Payment reminder",
			CTALabel: "Pay now",
			CTAURL:   "https://pay.example.com/inv-100",
		},
		CustomerName:  "Acme Trading LLC",
		Body:          "Please settle the outstanding balance.",
		InvoiceNumber: "INV-100",
		Amount:        "AED 1500.00",
		DueDate:       "14 January 2026",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"Acme Trading LLC", "INV-100", "AED 1500.00", "https://pay.example.com/inv-100", "Pay now"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
}

func TestRenderConsolidatedTemplateListsAllInvoices(t *testing.T) {
	html, err := renderEmailTemplate("consolidated.html", consolidatedEmailData{
		baseEmailData: baseEmailData{
			Title:    "2 overdue invoices on your account",
			Heading:  "Several invoices are overdue",
			CTALabel: "Settle all invoices",
			CTAURL:   "https://pay.example.com/account",
		},
		CustomerName: "Acme Trading LLC",
		Invoices: []consolidatedLine{
			{Number: "INV-100", Amount: "AED 1500.00", DueDate: "1 December 2025", DaysOverdue: 44},
			{Number: "INV-101", Amount: "AED 800.00", DueDate: "15 December 2025", DaysOverdue: 30},
		},
		TotalAmount: "AED 2300.00",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"INV-100", "INV-101", "AED 2300.00"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
}

func TestRenderEscapesCustomerInput(t *testing.T) {
	html, err := renderEmailTemplate("manager_alert.html", managerAlertEmailData{
		baseEmailData: baseEmailData{Title: "Action needed", Heading: "Invoice needs attention"},
		InvoiceID:     "3e9c5f2a-0000-0000-0000-000000000000",
		Reason:        `<script>alert("x")</script>`,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("template should escape html in the reason")
	}
}

func TestReminderSubjectPerTone(t *testing.T) {
	cases := []struct {
		tone string
		want string
	}{
		{"GENTLE", "A friendly reminder about invoice INV-7"},
		{"FIRM", "Overdue invoice INV-7 requires your attention"},
		{"URGENT", "Urgent: invoice INV-7 remains unpaid"},
		{"PROFESSIONAL", "Payment reminder for invoice INV-7"},
	}
	for _, tc := range cases {
		if got := reminderSubject(tc.tone, "INV-7"); got != tc.want {
			t.Errorf("reminderSubject(%s) = %q, want %q", tc.tone, got, tc.want)
		}
	}
}

func TestConsolidatedSubjectPerTier(t *testing.T) {
	cases := []struct {
		tier string
		want string
	}{
		{"consolidated_final_notice", "Final notice: 3 outstanding invoices"},
		{"consolidated_urgent", "Urgent: 3 invoices remain unpaid"},
		{"consolidated_firm", "3 overdue invoices on your account"},
		{"consolidated_polite", "Overview of 3 open invoices"},
	}
	for _, tc := range cases {
		if got := consolidatedSubject(tc.tier, 3); got != tc.want {
			t.Errorf("consolidatedSubject(%s) = %q, want %q", tc.tier, got, tc.want)
		}
	}
}

func TestFormatAmountDefaultsCurrency(t *testing.T) {
	if got := formatAmount(1234.5, ""); got != "AED 1234.50" {
		t.Fatalf("formatAmount = %q", got)
	}
	if got := formatAmount(99, "USD"); got != "USD 99.00" {
		t.Fatalf("formatAmount = %q", got)
	}
}
