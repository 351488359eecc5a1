package email

import "fmt"

const subjectManagerAlertFmt = "Action needed: invoice %s"

// reminderSubject maps a cultural tone to the subject line used when the
// step carries no custom subject.
func reminderSubject(tone, invoiceNumber string) string {
	switch tone {
	case "GENTLE":
		return fmt.Sprintf("A friendly reminder about invoice %s", invoiceNumber)
	case "FIRM":
		return fmt.Sprintf("Overdue invoice %s requires your attention", invoiceNumber)
	case "URGENT":
		return fmt.Sprintf("Urgent: invoice %s remains unpaid", invoiceNumber)
	default:
		return fmt.Sprintf("Payment reminder for invoice %s", invoiceNumber)
	}
}

func reminderHeading(tone string) string {
	switch tone {
	case "GENTLE":
		return "A gentle reminder"
	case "FIRM":
		return "Your invoice is overdue"
	case "URGENT":
		return "Immediate attention required"
	default:
		return "Payment reminder"
	}
}

func consolidatedSubject(tier string, count int) string {
	switch tier {
	case "consolidated_final_notice":
		return fmt.Sprintf("Final notice: %d outstanding invoices", count)
	case "consolidated_urgent":
		return fmt.Sprintf("Urgent: %d invoices remain unpaid", count)
	case "consolidated_firm":
		return fmt.Sprintf("%d overdue invoices on your account", count)
	default:
		return fmt.Sprintf("Overview of %d open invoices", count)
	}
}

func consolidatedHeading(tier string) string {
	switch tier {
	case "consolidated_final_notice":
		return "Final notice before further action"
	case "consolidated_urgent":
		return "Your account needs immediate attention"
	case "consolidated_firm":
		return "Several invoices are overdue"
	default:
		return "Your open invoices at a glance"
	}
}
