package publish

import (
	"context"
	"encoding/json"
	"io"
)

// StdoutPublisher writes messages as JSON lines to a writer. Used for
// print-only runs and tests.
type StdoutPublisher struct {
	enc *json.Encoder
}

// NewStdout creates a JSONL publisher over w.
func NewStdout(w io.Writer) *StdoutPublisher {
	return &StdoutPublisher{enc: json.NewEncoder(w)}
}

func (p *StdoutPublisher) Connect(_ context.Context) error { return nil }

func (p *StdoutPublisher) Publish(_ context.Context, msg Message) error {
	return p.enc.Encode(msg)
}

func (p *StdoutPublisher) Disconnect(_ context.Context) error { return nil }
