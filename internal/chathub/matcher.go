package chathub

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"
)

// WaitingEntry is one participant parked in the matching queue.
// Preferences are opaque and reserved for future topic-based matching;
// the algorithm itself is pure FIFO.
type WaitingEntry struct {
	AnonID      string
	Preferences json.RawMessage
	JoinedAt    time.Time
}

// MatcherService owns the matching queue and the pairing table. Every
// check-then-act sequence (pop head + create pairing) runs inside one
// critical section, so a participant can never end up waiting and
// paired at the same time.
type MatcherService struct {
	mu      sync.Mutex
	queue   *list.List // *WaitingEntry, oldest at the front
	waiting map[string]*list.Element
	pairs   map[string]string
}

// NewMatcherService creates an empty matcher.
func NewMatcherService() *MatcherService {
	return &MatcherService{
		queue:   list.New(),
		waiting: make(map[string]*list.Element),
		pairs:   make(map[string]string),
	}
}

// Join adds the participant to the queue, or pairs them with the oldest
// waiting participant. Re-joining while already queued replaces the old
// entry, so at most one entry per participant exists. Returns the
// partner id when a pairing was formed.
func (m *MatcherService) Join(anonID string, prefs json.RawMessage) (partnerID string, matched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeWaitingLocked(anonID)
	m.removePairLocked(anonID)

	if front := m.queue.Front(); front != nil {
		entry := m.queue.Remove(front).(*WaitingEntry)
		delete(m.waiting, entry.AnonID)
		m.pairs[anonID] = entry.AnonID
		m.pairs[entry.AnonID] = anonID
		return entry.AnonID, true
	}

	entry := &WaitingEntry{AnonID: anonID, Preferences: prefs, JoinedAt: time.Now()}
	m.waiting[anonID] = m.queue.PushBack(entry)
	return "", false
}

// Leave removes the participant's queue entry if present.
func (m *MatcherService) Leave(anonID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeWaitingLocked(anonID)
}

// Partner returns the current partner of a participant, if paired.
func (m *MatcherService) Partner(anonID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	partner, ok := m.pairs[anonID]
	return partner, ok
}

// RemovePair tears down the pairing for a participant and its partner.
func (m *MatcherService) RemovePair(anonID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removePairLocked(anonID)
}

// QueueLen reports how many participants are waiting.
func (m *MatcherService) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

func (m *MatcherService) removeWaitingLocked(anonID string) {
	if el, ok := m.waiting[anonID]; ok {
		m.queue.Remove(el)
		delete(m.waiting, anonID)
	}
}

func (m *MatcherService) removePairLocked(anonID string) {
	if partner, ok := m.pairs[anonID]; ok {
		delete(m.pairs, partner)
	}
	delete(m.pairs, anonID)
}
