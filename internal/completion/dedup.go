package completion

import "sync"

// recipientSet is an insertion-ordered set guarded by its own lock so that
// workers touching different campaigns never contend.
type recipientSet struct {
	mu      sync.Mutex
	order   []string
	members map[string]struct{}
}

func newRecipientSet() *recipientSet {
	return &recipientSet{members: make(map[string]struct{})}
}

// add reports whether recipient was newly added.
func (s *recipientSet) add(recipient string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[recipient]; ok {
		return false
	}
	s.members[recipient] = struct{}{}
	s.order = append(s.order, recipient)
	return true
}

func (s *recipientSet) remove(recipient string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[recipient]; !ok {
		return
	}
	delete(s.members, recipient)
	for i, r := range s.order {
		if r == recipient {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *recipientSet) has(recipient string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[recipient]
	return ok
}

func (s *recipientSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// trim keeps the most recent keep recipients once the set exceeds max.
func (s *recipientSet) trim(max, keep int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) <= max {
		return 0
	}
	cut := len(s.order) - keep
	for _, r := range s.order[:cut] {
		delete(s.members, r)
	}
	kept := make([]string, keep)
	copy(kept, s.order[cut:])
	s.order = kept
	return cut
}

type dedupStore struct {
	mu   sync.RWMutex
	sets map[string]*recipientSet
}

func newDedupStore() *dedupStore {
	return &dedupStore{sets: make(map[string]*recipientSet)}
}

func (d *dedupStore) set(campaignID string) *recipientSet {
	d.mu.RLock()
	s, ok := d.sets[campaignID]
	d.mu.RUnlock()
	if ok {
		return s
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok = d.sets[campaignID]; ok {
		return s
	}
	s = newRecipientSet()
	d.sets[campaignID] = s
	return s
}

// claim atomically checks and records recipient for campaignID.
func (d *dedupStore) claim(campaignID, recipient string) bool {
	return d.set(campaignID).add(recipient)
}

func (d *dedupStore) release(campaignID, recipient string) {
	d.set(campaignID).remove(recipient)
}

func (d *dedupStore) seen(campaignID, recipient string) bool {
	d.mu.RLock()
	s, ok := d.sets[campaignID]
	d.mu.RUnlock()
	return ok && s.has(recipient)
}

func (d *dedupStore) all() []*recipientSet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*recipientSet, 0, len(d.sets))
	for _, s := range d.sets {
		out = append(out, s)
	}
	return out
}

func (d *dedupStore) trim(max, keep int) (campaigns, removed int) {
	for _, s := range d.all() {
		if n := s.trim(max, keep); n > 0 {
			campaigns++
			removed += n
		}
	}
	return campaigns, removed
}

func (d *dedupStore) counts() (campaigns, recipients int) {
	sets := d.all()
	for _, s := range sets {
		recipients += s.size()
	}
	return len(sets), recipients
}

func (d *dedupStore) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sets = make(map[string]*recipientSet)
}
