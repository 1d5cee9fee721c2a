package chathub

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"stringchat/backend/internal/models"
)

// PairKey derives the order-independent session key for two
// participant ids: PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "::" + b
}

// Session is the ephemeral per-pair state: the transcript and the save
// votes. Once Resolved, both become immutable.
type Session struct {
	Key      string
	Messages []models.Message
	Votes    map[string]models.Vote
	Resolved bool
}

// VoteStatus classifies the outcome of recording one vote.
type VoteStatus int

const (
	// VoteIgnored: the session was already resolved; nothing changed.
	VoteIgnored VoteStatus = iota
	// VoteWaiting: the partner has not voted yet.
	VoteWaiting
	// VoteResolved: this vote completed the consensus.
	VoteResolved
)

// VoteOutcome is what RecordVote hands back to the hub: who to notify
// and what to tell them.
type VoteOutcome struct {
	Status VoteStatus
	Voters []string
	Result models.SaveResultPayload
}

// SessionRegistry holds all open sessions. Mutation is serialized by
// one mutex so a double resolution is structurally impossible: the
// resolved flag is checked and set in the same critical section as the
// vote upsert.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timers   map[string]*time.Timer
	grace    time.Duration
}

// NewSessionRegistry creates a registry. A resolved session is purged
// after the grace delay so late duplicate reads still observe the
// result before eviction.
func NewSessionRegistry(grace time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		timers:   make(map[string]*time.Timer),
		grace:    grace,
	}
}

// GetOrCreate ensures an open session exists for the pair and returns
// its key.
func (r *SessionRegistry) GetOrCreate(a, b string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(a, b).Key
}

// Has reports whether a session currently exists for the pair.
func (r *SessionRegistry) Has(a, b string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[PairKey(a, b)]
	return ok
}

// Snapshot returns a deep copy of the session for the pair, if any.
func (r *SessionRegistry) Snapshot(a, b string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[PairKey(a, b)]
	if !ok {
		return Session{}, false
	}
	return Session{
		Key:      sess.Key,
		Messages: copyMessages(sess.Messages),
		Votes:    copyVotes(sess.Votes),
		Resolved: sess.Resolved,
	}, true
}

// AppendMessage adds a transcript entry to the pair's session, creating
// it if needed. Returns false if the session is already resolved.
func (r *SessionRegistry) AppendMessage(a, b string, msg models.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess := r.getOrCreateLocked(a, b)
	if sess.Resolved {
		return false
	}
	sess.Messages = append(sess.Messages, msg)
	return true
}

// RecordVote upserts the voter's vote. Before resolution, last write
// wins; after resolution the call is an idempotent no-op. The second
// distinct vote resolves the session exactly once, computes the
// consensus, and schedules the purge.
func (r *SessionRegistry) RecordVote(voterID, partnerID string, vote models.Vote) VoteOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.getOrCreateLocked(voterID, partnerID)
	if sess.Resolved {
		return VoteOutcome{Status: VoteIgnored}
	}

	sess.Votes[voterID] = vote
	if len(sess.Votes) < 2 {
		return VoteOutcome{Status: VoteWaiting}
	}

	sess.Resolved = true

	allSaved := true
	voters := make([]string, 0, 2)
	for id, v := range sess.Votes {
		voters = append(voters, id)
		if !v.Save {
			allSaved = false
		}
	}

	result := models.SaveResultPayload{Saved: allSaved}
	if allSaved {
		result.Messages = copyMessages(sess.Messages)
		result.Votes = copyVotes(sess.Votes)
		result.SessionKey = sess.Key
	}

	r.schedulePurgeLocked(sess.Key)
	slog.Info("session resolved", "key", sess.Key, "saved", allSaved, "messages", len(sess.Messages))
	return VoteOutcome{Status: VoteResolved, Voters: voters, Result: result}
}

// Delete removes the pair's session immediately and cancels any pending
// purge timer.
func (r *SessionRegistry) Delete(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(PairKey(a, b))
}

// DeleteAllFor removes every session the participant is part of. The
// disconnect cascade uses this instead of Delete because the pairing
// may be gone while the session still exists (post end-chat voting).
func (r *SessionRegistry) DeleteAllFor(anonID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.sessions {
		a, b, _ := strings.Cut(key, "::")
		if a == anonID || b == anonID {
			r.deleteLocked(key)
		}
	}
}

// Len reports the number of live sessions (resolved ones included until
// their grace window elapses).
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) getOrCreateLocked(a, b string) *Session {
	key := PairKey(a, b)
	sess, ok := r.sessions[key]
	if !ok {
		sess = &Session{Key: key, Votes: make(map[string]models.Vote)}
		r.sessions[key] = sess
	}
	return sess
}

func (r *SessionRegistry) schedulePurgeLocked(key string) {
	if t, ok := r.timers[key]; ok {
		t.Stop()
	}
	r.timers[key] = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.deleteLocked(key)
	})
}

func (r *SessionRegistry) deleteLocked(key string) {
	if t, ok := r.timers[key]; ok {
		t.Stop()
		delete(r.timers, key)
	}
	delete(r.sessions, key)
}

func copyMessages(in []models.Message) []models.Message {
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}

func copyVotes(in map[string]models.Vote) map[string]models.Vote {
	out := make(map[string]models.Vote, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
