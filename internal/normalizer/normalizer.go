// Package normalizer rescales the step/overall progress stream of a nested
// multi-step tool into a single provider-level 0-100 percent.
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/renovatio/renovatio/pkg/sdk"
)

// CompleteMessage is the status shown once the nested stream finishes.
const CompleteMessage = "Update complete."

// Policy decides what percent to report between coarse milestones.
type Policy int

const (
	// Hold reports step_progress when positive, otherwise the latest milestone.
	Hold Policy = iota
	// Interpolate maps step_progress into the current step's share of the
	// overall range instead of reporting it raw.
	Interpolate
)

// ParsePolicy maps a config string to a Policy, defaulting to Hold.
func ParsePolicy(s string) Policy {
	if strings.EqualFold(strings.TrimSpace(s), "interpolate") {
		return Interpolate
	}
	return Hold
}

func (p Policy) String() string {
	if p == Interpolate {
		return "interpolate"
	}
	return "hold"
}

// NestedRecord is one line of the nested tool's structured progress output.
type NestedRecord struct {
	Level       string `json:"level"`
	Msg         string `json:"msg"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// Step is the zero-based index of the current step.
	Step int `json:"progress"`
	// Total is the number of steps.
	Total int `json:"total"`
	// StepProgress is the percent within the current step, 0 when unknown.
	StepProgress float64 `json:"step_progress"`
	// Overall is the tool's own percent across all steps.
	Overall int `json:"overall"`
}

// Parse decodes a single JSON line. Missing numeric fields decode as zero.
func Parse(line []byte) (NestedRecord, error) {
	var rec NestedRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return NestedRecord{}, fmt.Errorf("decode nested progress: %w", err)
	}
	return rec, nil
}

// Finished reports whether rec is the stream's completion sentinel.
func (r NestedRecord) Finished() bool {
	return (r.Step == 0 && r.Total == 0) || r.Step >= 100
}

// Normalizer converts one provider run's nested records. It is not safe for
// concurrent use; create one per run.
type Normalizer struct {
	provider        string
	policy          Policy
	previousOverall int
	done            bool
}

// New creates a normalizer for the named provider.
func New(provider string, policy Policy) *Normalizer {
	return &Normalizer{provider: provider, policy: policy}
}

// Done reports whether the completion sentinel has been seen.
func (n *Normalizer) Done() bool {
	return n.done
}

// Next converts rec into a provider-level record. The second result is true
// when rec was the completion sentinel, in which case the returned record is
// the provider's terminal record.
func (n *Normalizer) Next(rec NestedRecord) (sdk.Progress, bool) {
	out := sdk.NewProgress(n.provider)

	if rec.Finished() {
		n.done = true
		out.Percent = sdk.PercentComplete
		out.Message = CompleteMessage
		return out, true
	}

	out.Percent = n.percent(rec)
	out.Message = Message(rec)
	if rec.Overall > n.previousOverall {
		n.previousOverall = rec.Overall
	}
	return out, false
}

func (n *Normalizer) percent(rec NestedRecord) int {
	if rec.StepProgress <= 0 {
		// A milestone record: report it once it lands, never below what was shown.
		return clamp(max(n.previousOverall, rec.Overall))
	}

	switch n.policy {
	case Interpolate:
		if rec.Total <= 0 {
			return n.previousOverall
		}
		span := 100.0 / float64(rec.Total)
		v := float64(n.previousOverall) + rec.StepProgress/100*span
		return clamp(int(math.Round(v)))
	default:
		return clamp(int(rec.StepProgress))
	}
}

// Message composes the status line with a "(step X of Y)" suffix.
func Message(rec NestedRecord) string {
	var parts []string
	if rec.Msg != "" {
		parts = append(parts, rec.Msg)
	}
	head := strings.Join(parts, " ")
	switch {
	case rec.Title != "" && head != "":
		head += " " + rec.Title
	case rec.Title != "":
		head = rec.Title
	}
	if rec.Description != "" {
		if head != "" {
			head += " - "
		}
		head += rec.Description
	}

	if rec.Total <= 0 {
		return head
	}

	step := rec.Step + 1
	if step > rec.Total {
		step = rec.Total
	}
	suffix := fmt.Sprintf("(step %d of %d)", step, rec.Total)
	if head == "" {
		return suffix
	}
	return head + " " + suffix
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > sdk.PercentComplete {
		return sdk.PercentComplete
	}
	return v
}
