package sdk

// PercentComplete is the sentinel percent that marks a provider as done.
const PercentComplete = 100

// Progress is a single progress report sent from a provider to the orchestrator.
type Progress struct {
	// Provider is the reporting provider's Name().
	Provider string `json:"provider"`

	// Percent is 0-100. 100 means the provider has finished.
	Percent int `json:"percent"`

	// Indeterminate marks activity without a meaningful percent.
	// Consumers only look at Percent to detect completion.
	Indeterminate bool `json:"indeterminate,omitempty"`

	// RebootRequired is sticky for the whole run once any provider sets it.
	RebootRequired bool `json:"rebootRequired,omitempty"`

	// Failed marks an explicit failure record. A failed record is terminal.
	Failed bool `json:"failed,omitempty"`

	// Message replaces the previous status line.
	Message string `json:"message"`

	// Stdout and Stderr carry captured output of the most recent sub-operation.
	// nil means absent, which is different from empty output.
	Stdout *string `json:"stdout,omitempty"`
	Stderr *string `json:"stderr,omitempty"`
}

// NewProgress returns a zero-percent record for the named provider.
func NewProgress(provider string) Progress {
	return Progress{Provider: provider}
}

// Clone returns a deep copy so the sender can keep mutating its working record.
func (p Progress) Clone() Progress {
	c := p
	if p.Stdout != nil {
		s := *p.Stdout
		c.Stdout = &s
	}
	if p.Stderr != nil {
		s := *p.Stderr
		c.Stderr = &s
	}
	return c
}

// Terminal reports whether this record ends the provider's stream.
func (p Progress) Terminal() bool {
	return p.Failed || p.Percent >= PercentComplete
}

// HasOutput reports whether the record carries captured command output.
func (p Progress) HasOutput() bool {
	return p.Stdout != nil || p.Stderr != nil
}

// WithOutput attaches captured output. Empty strings are kept as present-but-empty.
func (p *Progress) WithOutput(stdout, stderr string) {
	p.Stdout = &stdout
	p.Stderr = &stderr
}

// ClearOutput drops any attached output so the next send does not repeat it.
func (p *Progress) ClearOutput() {
	p.Stdout = nil
	p.Stderr = nil
}

// Clamp limits Percent to 0-100 and to no less than prev.
func (p *Progress) Clamp(prev int) {
	if p.Percent < 0 {
		p.Percent = 0
	}
	if p.Percent > PercentComplete {
		p.Percent = PercentComplete
	}
	if p.Percent < prev {
		p.Percent = prev
	}
}

// StringPtr is a convenience for building records with output.
func StringPtr(s string) *string {
	return &s
}
