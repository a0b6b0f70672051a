package sendlog

import (
	"context"
	"sort"
	"sync"

	"vendzz/pkg/models"
)

type MemoryRecorder struct {
	mu    sync.RWMutex
	sends map[string]models.ScheduledSend
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{sends: make(map[string]models.ScheduledSend)}
}

func (r *MemoryRecorder) Record(ctx context.Context, send models.ScheduledSend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(send.CampaignID, send.Recipient)
	if _, exists := r.sends[k]; exists {
		return nil
	}
	r.sends[k] = send
	return nil
}

func (r *MemoryRecorder) UpdateStatus(ctx context.Context, campaignID, recipient string, status models.SendStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(campaignID, recipient)
	send, ok := r.sends[k]
	if !ok {
		return nil
	}
	send.Status = status
	r.sends[k] = send
	return nil
}

func (r *MemoryRecorder) Backend() string {
	return "memory"
}

// List returns every recorded send ordered by creation time.
func (r *MemoryRecorder) List() []models.ScheduledSend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ScheduledSend, 0, len(r.sends))
	for _, s := range r.sends {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sends)
}
