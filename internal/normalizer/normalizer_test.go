package normalizer

import (
	"strings"
	"testing"
)

func TestHoldScenario(t *testing.T) {
	n := New("uupd", Hold)
	stream := []NestedRecord{
		{Step: 0, Total: 5, StepProgress: 0, Overall: 0},
		{Step: 0, Total: 5, StepProgress: 40, Overall: 0},
		{Step: 1, Total: 5, StepProgress: 0, Overall: 20},
	}
	wantPercents := []int{0, 40, 20}
	wantSuffix := []string{"(step 1 of 5)", "(step 1 of 5)", "(step 2 of 5)"}

	for i, rec := range stream {
		p, done := n.Next(rec)
		if done {
			t.Fatalf("record %d unexpectedly terminal", i)
		}
		if p.Percent != wantPercents[i] {
			t.Fatalf("record %d: percent = %d, want %d", i, p.Percent, wantPercents[i])
		}
		if !strings.HasSuffix(p.Message, wantSuffix[i]) {
			t.Fatalf("record %d: message %q lacks %q", i, p.Message, wantSuffix[i])
		}
		if p.Provider != "uupd" {
			t.Fatalf("record %d: provider = %q", i, p.Provider)
		}
	}
}

func TestHoldNeverDropsBetweenMilestones(t *testing.T) {
	n := New("uupd", Hold)
	overalls := []int{0, 0, 20, 20, 20, 40, 60, 60, 80}

	var got []int
	for i, o := range overalls {
		p, _ := n.Next(NestedRecord{Step: i / 2, Total: 5, Overall: o})
		got = append(got, p.Percent)
	}

	for i := 1; i < len(got); i++ {
		if got[i] != overalls[i] {
			t.Fatalf("report %d = %d, want milestone %d", i, got[i], overalls[i])
		}
		if got[i] < got[i-1] {
			t.Fatalf("report %d regressed from %d to %d", i, got[i-1], got[i])
		}
	}
	if got[0] != 0 {
		t.Fatalf("first report should start at 0, got %d", got[0])
	}
}

func TestHoldIgnoresLowerOverall(t *testing.T) {
	n := New("uupd", Hold)
	n.Next(NestedRecord{Step: 2, Total: 5, Overall: 40})

	p, _ := n.Next(NestedRecord{Step: 2, Total: 5, Overall: 20})
	if p.Percent != 40 {
		t.Fatalf("expected 40 to be held, got %d", p.Percent)
	}
}

func TestCompletionSentinel(t *testing.T) {
	n := New("uupd", Hold)
	n.Next(NestedRecord{Step: 4, Total: 5, Overall: 80})

	p, done := n.Next(NestedRecord{Level: "INFO", Msg: "Updates Completed"})
	if !done || !n.Done() {
		t.Fatal("expected step 0 / total 0 to complete the stream")
	}
	if p.Percent != 100 || p.Message != CompleteMessage {
		t.Fatalf("unexpected terminal record %+v", p)
	}
}

func TestStepSuffixNeverExceedsTotal(t *testing.T) {
	msg := Message(NestedRecord{Msg: "Updating", Title: "Flatpak", Description: "system", Step: 5, Total: 5})
	if msg != "Updating Flatpak - system (step 5 of 5)" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestMessageOmitsEmptyParts(t *testing.T) {
	tests := []struct {
		rec  NestedRecord
		want string
	}{
		{NestedRecord{Msg: "Updating", Total: 3}, "Updating (step 1 of 3)"},
		{NestedRecord{Title: "Brew", Description: "formulae", Step: 1, Total: 3}, "Brew - formulae (step 2 of 3)"},
		{NestedRecord{Total: 2}, "(step 1 of 2)"},
		{NestedRecord{Msg: "Starting"}, "Starting"},
	}
	for _, tt := range tests {
		if got := Message(tt.rec); got != tt.want {
			t.Fatalf("Message(%+v) = %q, want %q", tt.rec, got, tt.want)
		}
	}
}

func TestInterpolatePolicy(t *testing.T) {
	n := New("uupd", Interpolate)
	n.Next(NestedRecord{Step: 1, Total: 5, Overall: 20})

	p, _ := n.Next(NestedRecord{Step: 1, Total: 5, StepProgress: 50, Overall: 20})
	if p.Percent != 30 {
		t.Fatalf("expected 20 + 50%% of a 20-point step = 30, got %d", p.Percent)
	}

	p, _ = n.Next(NestedRecord{Step: 2, Total: 5, Overall: 40})
	if p.Percent != 40 {
		t.Fatalf("expected the next milestone 40, got %d", p.Percent)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"INFO","msg":"Updating","title":"System","description":"bootc","progress":1,"total":5,"step_progress":42.5,"overall":20}`
	rec, err := Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Step != 1 || rec.Total != 5 || rec.StepProgress != 42.5 || rec.Overall != 20 || rec.Title != "System" {
		t.Fatalf("unexpected record %+v", rec)
	}

	rec, err = Parse([]byte(`{"level":"INFO","msg":"Updates Completed"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !rec.Finished() {
		t.Fatal("record without step counters should be the completion sentinel")
	}

	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParsePolicy(t *testing.T) {
	if ParsePolicy("Interpolate") != Interpolate {
		t.Fatal("expected interpolate")
	}
	if ParsePolicy("") != Hold || ParsePolicy("hold") != Hold {
		t.Fatal("expected hold default")
	}
}
