package sdk

import "testing"

func TestCloneCopiesOutput(t *testing.T) {
	p := NewProgress("brew")
	p.WithOutput("out", "")

	c := p.Clone()
	*p.Stdout = "changed"

	if *c.Stdout != "out" {
		t.Fatalf("expected clone stdout to stay %q, got %q", "out", *c.Stdout)
	}
	if c.Stderr == nil || *c.Stderr != "" {
		t.Fatal("expected empty stderr to remain present after clone")
	}
}

func TestClearOutputMakesOutputAbsent(t *testing.T) {
	p := NewProgress("brew")
	p.WithOutput("", "")
	if !p.HasOutput() {
		t.Fatal("empty output should still count as present")
	}

	p.ClearOutput()
	if p.HasOutput() {
		t.Fatal("expected output to be absent after ClearOutput")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		prev    int
		want    int
	}{
		{"in range", 40, 10, 40},
		{"regression held", 20, 40, 40},
		{"negative", -5, 0, 0},
		{"overflow", 140, 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Progress{Percent: tt.percent}
			p.Clamp(tt.prev)
			if p.Percent != tt.want {
				t.Fatalf("Clamp(%d) from %d = %d, want %d", tt.prev, tt.percent, p.Percent, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	if (Progress{Percent: 99}).Terminal() {
		t.Fatal("99 percent is not terminal")
	}
	if !(Progress{Percent: 100}).Terminal() {
		t.Fatal("100 percent is terminal")
	}
	if !(Progress{Percent: 10, Failed: true}).Terminal() {
		t.Fatal("failure records are terminal")
	}
}

func TestConflictsWith(t *testing.T) {
	conflicts := ConflictsWith("uupd")
	if !conflicts("uupd") {
		t.Fatal("expected conflict with uupd")
	}
	if conflicts("flatpak") {
		t.Fatal("did not expect conflict with flatpak")
	}
	if !ConflictsWithAll("anything") {
		t.Fatal("exclusive provider must conflict with everything")
	}
}
