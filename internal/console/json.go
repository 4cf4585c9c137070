package console

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/renovatio/renovatio/internal/orchestrator"
)

// JSONSink writes one JSON object per line, for scripts.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type event struct {
	Type    string                `json:"type"`
	Update  *orchestrator.Update  `json:"update,omitempty"`
	Summary *orchestrator.Summary `json:"summary,omitempty"`
	Output  *output               `json:"output,omitempty"`
}

type output struct {
	Provider string  `json:"provider"`
	Stdout   *string `json:"stdout,omitempty"`
	Stderr   *string `json:"stderr,omitempty"`
}

// NewJSON creates a sink writing to w.
func NewJSON(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Progress(u orchestrator.Update) {
	s.write(event{Type: "progress", Update: &u})
}

func (s *JSONSink) Output(provider string, stdout, stderr *string) {
	s.write(event{Type: "output", Output: &output{Provider: provider, Stdout: stdout, Stderr: stderr}})
}

func (s *JSONSink) Finished(sum orchestrator.Summary) {
	s.write(event{Type: "finished", Summary: &sum})
}

func (s *JSONSink) write(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(e)
}
