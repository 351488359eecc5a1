package transport

import (
	"testing"

	"reminder_backend/internal/followup/domain"
)

func TestToSequenceResponseMapsSteps(t *testing.T) {
	seq := domain.NewSequence("Standard recovery")
	seq.UAEBusinessHoursOnly = true
	seq.RespectHolidays = true

	email, err := seq.AddStep(domain.StepTypeEmail)
	if err != nil {
		t.Fatalf("add email step: %v", err)
	}
	email.Tone = domain.ToneFirm
	email.UAE = domain.UAESettings{
		RespectBusinessHours: true,
		HonorPrayerTimes:     true,
		RespectHolidays:      false,
	}
	email.Email = &domain.EmailConfig{Subject: "Invoice overdue", Body: "Please pay."}

	wait, err := seq.AddStep(domain.StepTypeWait)
	if err != nil {
		t.Fatalf("add wait step: %v", err)
	}
	wait.Wait = &domain.WaitConfig{Delay: 3, Unit: domain.UnitDays}

	resp := ToSequenceResponse(seq)

	if resp.ID != seq.ID || resp.Name != "Standard recovery" {
		t.Fatalf("sequence identity not mapped: %+v", resp)
	}
	if !resp.UAEBusinessHoursOnly || !resp.RespectHolidays {
		t.Fatal("sequence scheduling flags not mapped")
	}
	if len(resp.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(resp.Steps))
	}

	first := resp.Steps[0]
	if first.ID != email.ID || first.Order != 1 || first.Type != domain.StepTypeEmail {
		t.Fatalf("email step identity not mapped: %+v", first)
	}
	if first.Tone != domain.ToneFirm {
		t.Fatalf("tone = %q", first.Tone)
	}
	if first.UAESettings != email.UAE {
		t.Fatalf("uae settings = %+v, want %+v", first.UAESettings, email.UAE)
	}
	if first.Email == nil || first.Email.Subject != "Invoice overdue" {
		t.Fatalf("email config not mapped: %+v", first.Email)
	}

	second := resp.Steps[1]
	if second.Wait == nil || second.Wait.Delay != 3 || second.Wait.Unit != domain.UnitDays {
		t.Fatalf("wait config not mapped: %+v", second.Wait)
	}
	if resp.TotalDurationDays != 3 {
		t.Fatalf("total duration = %v, want 3", resp.TotalDurationDays)
	}
}
