// Package sender delivers dispatched campaign messages to their channels.
package sender

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vendzz/pkg/metrics"
)

// Message is one dispatch unit: a single message body for a set of
// recipients on one channel.
type Message struct {
	ID         string
	Channel    string
	QuizID     string
	UserID     string
	CampaignID string
	Subject    string
	Body       string
	Recipients []string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

func (r *Registry) Register(channel string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[channel] = s
}

func (r *Registry) Get(channel string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[channel]
	return s, ok
}

func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	return out
}

// Send routes msg to the sender registered for its channel.
func (r *Registry) Send(ctx context.Context, msg Message) error {
	s, ok := r.Get(msg.Channel)
	if !ok {
		metrics.ObserveSenderDispatch(msg.Channel, "unroutable", 0)
		return fmt.Errorf("no sender registered for channel %q", msg.Channel)
	}

	start := time.Now()
	err := s.Send(ctx, msg)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveSenderDispatch(msg.Channel, status, time.Since(start))
	return err
}
