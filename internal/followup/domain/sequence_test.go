package domain

import (
	"testing"

	"github.com/google/uuid"
)

func buildSequence(t *testing.T, types ...StepType) *Sequence {
	t.Helper()
	seq := NewSequence("Standard dunning")
	for _, st := range types {
		if _, err := seq.AddStep(st); err != nil {
			t.Fatalf("AddStep(%s): %v", st, err)
		}
	}
	return seq
}

func assertContiguousOrder(t *testing.T, seq *Sequence) {
	t.Helper()
	for i, step := range seq.Steps {
		if step.Order != i+1 {
			t.Fatalf("step at index %d has order %d, want %d", i, step.Order, i+1)
		}
	}
}

func TestAddStepAssignsContiguousOrder(t *testing.T) {
	seq := buildSequence(t, StepTypeEmail, StepTypeWait, StepTypeEmail, StepTypeCondition)

	if len(seq.Steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(seq.Steps))
	}
	assertContiguousOrder(t, seq)

	if seq.Steps[1].Wait == nil || seq.Steps[1].Wait.Delay != 3 || seq.Steps[1].Wait.Unit != UnitDays {
		t.Errorf("wait step defaults = %+v, want 3 DAYS", seq.Steps[1].Wait)
	}
	if seq.Steps[0].Email == nil {
		t.Error("email step should carry an email config")
	}
}

func TestAddStepRejectsUnknownType(t *testing.T) {
	seq := NewSequence("seq")
	if _, err := seq.AddStep(StepType("SMS")); err == nil {
		t.Fatal("expected error for unknown step type")
	}
}

func TestDeleteStepRenumbers(t *testing.T) {
	seq := buildSequence(t, StepTypeEmail, StepTypeWait, StepTypeEmail)
	deleted := seq.Steps[1].ID

	if err := seq.DeleteStep(deleted); err != nil {
		t.Fatalf("DeleteStep: %v", err)
	}

	if len(seq.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(seq.Steps))
	}
	assertContiguousOrder(t, seq)
	for _, step := range seq.Steps {
		if step.ID == deleted {
			t.Fatal("deleted step still present")
		}
	}
}

func TestDeleteStepUnknownID(t *testing.T) {
	seq := buildSequence(t, StepTypeEmail)
	if err := seq.DeleteStep(uuid.New()); err == nil {
		t.Fatal("expected error deleting unknown step")
	}
}

func TestDuplicateStepInsertsAfterOriginal(t *testing.T) {
	seq := buildSequence(t, StepTypeEmail, StepTypeWait, StepTypeEmail)
	original := seq.Steps[0]

	dup, err := seq.DuplicateStep(original.ID)
	if err != nil {
		t.Fatalf("DuplicateStep: %v", err)
	}

	if len(seq.Steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(seq.Steps))
	}
	assertContiguousOrder(t, seq)

	if seq.Steps[1].ID != dup.ID {
		t.Error("duplicate not inserted immediately after original")
	}
	if dup.ID == original.ID {
		t.Error("duplicate must have a fresh id")
	}
	if dup.Name != original.Name+" (copy)" {
		t.Errorf("duplicate name = %q, want suffixed copy of %q", dup.Name, original.Name)
	}

	// Deep copy: mutating the duplicate's config must not touch the original.
	dup.Email.Body = "changed"
	if seq.Steps[0].Email.Body == "changed" {
		t.Error("duplicate shares email config with original")
	}
}

func TestReorderMovesStepAndRenumbers(t *testing.T) {
	seq := buildSequence(t, StepTypeEmail, StepTypeWait, StepTypeEmail, StepTypeAction)
	firstID := seq.Steps[0].ID

	if err := seq.Reorder(1, 3); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	assertContiguousOrder(t, seq)
	if seq.Steps[2].ID != firstID {
		t.Errorf("moved step at position %d, want 3", seq.indexOf(firstID)+1)
	}

	if err := seq.Reorder(0, 2); err == nil {
		t.Error("expected error for out-of-range position")
	}
	if err := seq.Reorder(2, 2); err != nil {
		t.Errorf("same-position reorder should be a no-op, got %v", err)
	}
}

func TestValidateReturnsAllViolations(t *testing.T) {
	seq := NewSequence("")
	violations := seq.Validate()
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2 (name, steps): %+v", len(violations), violations)
	}

	seq = buildSequence(t, StepTypeEmail, StepTypeWait)
	seq.Steps[1].Wait.Delay = 0

	violations = seq.Validate()
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2 (empty email, zero delay): %+v", len(violations), violations)
	}

	// Fix both and expect a clean result.
	seq.Steps[0].Email.Body = "Dear customer"
	seq.Steps[1].Wait.Delay = 2
	if violations = seq.Validate(); len(violations) != 0 {
		t.Fatalf("got %d violations, want 0: %+v", len(violations), violations)
	}
}

func TestTotalDurationNormalizesUnits(t *testing.T) {
	seq := buildSequence(t, StepTypeWait, StepTypeWait, StepTypeWait, StepTypeEmail)
	seq.Steps[0].Wait = &WaitConfig{Delay: 12, Unit: UnitHours}
	seq.Steps[1].Wait = &WaitConfig{Delay: 2, Unit: UnitDays}
	seq.Steps[2].Wait = &WaitConfig{Delay: 1, Unit: UnitWeeks}

	if got, want := seq.TotalDuration(), 0.5+2+7; got != want {
		t.Errorf("TotalDuration() = %v, want %v", got, want)
	}
}

// Mirrors the documented scenario: EMAIL, WAIT(3d), EMAIL, WAIT(7d), EMAIL
// spans 10 days; deleting the first WAIT leaves 7.
func TestTotalDurationScenario(t *testing.T) {
	seq := buildSequence(t, StepTypeEmail, StepTypeWait, StepTypeEmail, StepTypeWait, StepTypeEmail)
	seq.Steps[0].Tone = ToneGentle
	seq.Steps[2].Tone = ToneProfessional
	seq.Steps[4].Tone = ToneFirm
	seq.Steps[1].Wait = &WaitConfig{Delay: 3, Unit: UnitDays}
	seq.Steps[3].Wait = &WaitConfig{Delay: 7, Unit: UnitDays}

	if got := seq.TotalDuration(); got != 10.0 {
		t.Fatalf("TotalDuration() = %v, want 10.0", got)
	}

	if err := seq.DeleteStep(seq.Steps[1].ID); err != nil {
		t.Fatalf("DeleteStep: %v", err)
	}
	assertContiguousOrder(t, seq)
	if got := seq.TotalDuration(); got != 7.0 {
		t.Fatalf("TotalDuration() after delete = %v, want 7.0", got)
	}
}

func TestReorderPermutationsKeepContiguousOrder(t *testing.T) {
	for from := 1; from <= 5; from++ {
		for to := 1; to <= 5; to++ {
			seq := buildSequence(t, StepTypeEmail, StepTypeWait, StepTypeEmail, StepTypeWait, StepTypeAction)
			ids := make([]uuid.UUID, len(seq.Steps))
			for i, s := range seq.Steps {
				ids[i] = s.ID
			}

			if err := seq.Reorder(from, to); err != nil {
				t.Fatalf("Reorder(%d,%d): %v", from, to, err)
			}
			assertContiguousOrder(t, seq)

			if got := seq.indexOf(ids[from-1]) + 1; got != to {
				t.Errorf("Reorder(%d,%d): moved step at %d", from, to, got)
			}
			if len(seq.Steps) != 5 {
				t.Errorf("Reorder(%d,%d): lost steps, have %d", from, to, len(seq.Steps))
			}
		}
	}
}
