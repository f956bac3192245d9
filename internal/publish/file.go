package publish

import (
	"context"
	"encoding/json"
	"os"
)

// FilePublisher appends messages to a JSONL file.
type FilePublisher struct {
	path string
	file *os.File
	enc  *json.Encoder
}

// NewFile creates a file publisher. The file is opened on Connect.
func NewFile(path string) *FilePublisher {
	return &FilePublisher{path: path}
}

func (p *FilePublisher) Connect(_ context.Context) error {
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	p.file = f
	p.enc = json.NewEncoder(f)
	return nil
}

func (p *FilePublisher) Publish(_ context.Context, msg Message) error {
	return p.enc.Encode(msg)
}

func (p *FilePublisher) Disconnect(_ context.Context) error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	p.enc = nil
	return err
}
