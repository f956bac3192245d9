package publish

import "context"

// MultiPublisher fans messages out to several sinks.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMulti creates a fan-out publisher.
func NewMulti(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Connect connects every sink, stopping at the first failure.
func (m *MultiPublisher) Connect(ctx context.Context) error {
	for _, p := range m.publishers {
		if err := p.Connect(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends the message to every sink, stopping at the first failure.
func (m *MultiPublisher) Publish(ctx context.Context, msg Message) error {
	for _, p := range m.publishers {
		if err := p.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect disconnects every sink, returning the first error seen.
func (m *MultiPublisher) Disconnect(ctx context.Context) error {
	var first error
	for _, p := range m.publishers {
		if err := p.Disconnect(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
