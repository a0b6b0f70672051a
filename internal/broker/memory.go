package broker

import (
	"context"
	"sync"

	"vendzz/pkg/models"
)

// MemoryProducer records published envelopes in memory. It backs local runs
// without Kafka and tests that assert on published traffic.
type MemoryProducer struct {
	mu       sync.Mutex
	messages map[string][]models.MessageEnvelope
	// Err, when set, is returned by every Publish.
	Err    error
	closed bool
}

func NewMemoryProducer() *MemoryProducer {
	return &MemoryProducer{messages: make(map[string][]models.MessageEnvelope)}
}

func (p *MemoryProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.messages[topic] = append(p.messages[topic], msg)
	return nil
}

func (p *MemoryProducer) Messages(topic string) []models.MessageEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.MessageEnvelope, len(p.messages[topic]))
	copy(out, p.messages[topic])
	return out
}

func (p *MemoryProducer) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

func (p *MemoryProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
