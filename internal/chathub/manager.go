package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"stringchat/backend/internal/config"
	"stringchat/backend/internal/models"
	"stringchat/backend/internal/moderation"

	"github.com/google/uuid"
)

// InboundEvent is one validated frame from a connected client.
type InboundEvent struct {
	Client Client
	Env    models.Envelope
}

// ManagerService is the hub: it owns the client table and serializes
// every mutation of the matching queue, pairing table, and session
// registry through its single Run goroutine. Relaying is stateless and
// at-most-once: if the recipient is gone, the payload is dropped.
type ManagerService struct {
	Clients map[string]Client

	IncomingCh   chan InboundEvent
	RegisterCh   chan Client
	UnregisterCh chan Client

	Matcher    *MatcherService
	Sessions   *SessionRegistry
	Moderation *moderation.Service
}

// NewManagerService creates the hub around its coordination state.
func NewManagerService(matcher *MatcherService, sessions *SessionRegistry, mod *moderation.Service) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		IncomingCh:   make(chan InboundEvent, 64),
		RegisterCh:   make(chan Client, 16),
		UnregisterCh: make(chan Client, 16),
		Matcher:      matcher,
		Sessions:     sessions,
		Moderation:   mod,
	}
}

// Run is the hub's owning goroutine. All client-table access and all
// event handling happens here. It returns when ctx is cancelled.
func (m *ManagerService) Run(ctx context.Context) {
	slog.Info("hub started")
	for {
		// Lifecycle changes drain first: a client's registration is
		// queued before its pumps start, so its first event can never
		// be handled against an empty client table.
		select {
		case client := <-m.RegisterCh:
			m.register(client)
			continue
		case client := <-m.UnregisterCh:
			m.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			slog.Info("hub stopped")
			return
		case client := <-m.RegisterCh:
			m.register(client)
		case client := <-m.UnregisterCh:
			m.unregister(client)
		case ev := <-m.IncomingCh:
			m.handleEvent(ev)
		}
	}
}

func (m *ManagerService) register(c Client) {
	id := c.GetAnonID()
	if old, ok := m.Clients[id]; ok && old != c {
		// A reconnect with the same id: tear the stale one down first.
		m.unregister(old)
	}
	m.Clients[id] = c
	slog.Info("client connected", "anonID", id)
}

// unregister runs the full cleanup cascade for a departing connection:
// partner notification, session purge, queue and pairing removal,
// moderation counter reset. It fires at most once per client.
func (m *ManagerService) unregister(c Client) {
	id := c.GetAnonID()
	current, ok := m.Clients[id]
	if !ok || current != c {
		return
	}
	delete(m.Clients, id)

	if partner, paired := m.Matcher.Partner(id); paired {
		m.send(partner, models.EventPartnerLeft, nil)
	}
	// The pairing may already be gone (end-chat keeps the session for
	// voting), so session purge cannot go through the pair table.
	m.Sessions.DeleteAllFor(id)
	m.Matcher.Leave(id)
	m.Matcher.RemovePair(id)
	m.Moderation.Clear(id)

	c.Close()
	slog.Info("client disconnected", "anonID", id)
}

func (m *ManagerService) handleEvent(ev InboundEvent) {
	from := ev.Client.GetAnonID()

	switch ev.Env.Event {
	case models.EventJoinQueue:
		m.handleJoinQueue(from, ev.Env.Data)
	case models.EventLeaveQueue:
		m.Matcher.Leave(from)
	case models.EventOffer, models.EventAnswer, models.EventCandidate:
		m.relaySignal(from, ev.Env.Event, ev.Env.Data)
	case models.EventChat:
		m.handleChat(from, ev.Env.Data)
	case models.EventSaveVote:
		m.handleSaveVote(from, ev.Env.Data)
	case models.EventNext:
		m.handleNext(from, ev.Env.Data)
	case models.EventEndChat:
		m.handleEndChat(from, ev.Env.Data)
	case models.EventViolation:
		m.handleViolation(ev.Client, ev.Env.Data)
	}
}

func (m *ManagerService) handleJoinQueue(from string, data json.RawMessage) {
	var p models.JoinQueuePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			slog.Debug("bad join-queue payload", "anonID", from, "err", err)
			return
		}
	}

	// Re-queueing while paired is an implicit next: the old partner is
	// told and the old session goes away before the new match forms.
	if old, paired := m.Matcher.Partner(from); paired {
		m.Sessions.Delete(from, old)
		m.send(old, models.EventPartnerLeft, nil)
	}

	partner, matched := m.Matcher.Join(from, p.Preferences)
	if !matched {
		m.send(from, models.EventWaiting, nil)
		return
	}

	m.Sessions.GetOrCreate(from, partner)
	// The joiner that completed the pair drives the offer.
	m.send(from, models.EventMatched, models.MatchedPayload{PartnerID: partner, Initiator: true})
	m.send(partner, models.EventMatched, models.MatchedPayload{PartnerID: from, Initiator: false})
	slog.Info("paired", "a", from, "b", partner, "queued", m.Matcher.QueueLen())
}

// relaySignal forwards offer/answer/ice-candidate payloads unchanged,
// stamping the sender. No buffering, no acks: a stale negotiation
// payload has no value once the recipient moved on.
func (m *ManagerService) relaySignal(from, event string, data json.RawMessage) {
	var p models.SignalPayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		return
	}
	out := models.SignalPayload{
		From:      from,
		Offer:     p.Offer,
		Answer:    p.Answer,
		Candidate: p.Candidate,
	}
	m.send(p.To, event, out)
}

func (m *ManagerService) handleChat(from string, data json.RawMessage) {
	var p models.ChatSendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.To == "" {
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return
	}
	if runes := []rune(text); len(runes) > config.MaxMessageLen {
		text = string(runes[:config.MaxMessageLen])
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		From:      from,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}

	// The transcript is keyed by the actual pairing, not by the claimed
	// recipient.
	if partner, ok := m.Matcher.Partner(from); ok {
		m.Sessions.AppendMessage(from, partner, msg)
	}

	m.send(p.To, models.EventChat, models.ChatRecvPayload{
		ID:        msg.ID,
		From:      msg.From,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	})
}

func (m *ManagerService) handleSaveVote(from string, data json.RawMessage) {
	var p models.SaveVotePayload
	if err := json.Unmarshal(data, &p); err != nil || p.PartnerID == "" {
		return
	}

	// If the partner is gone and no session is left to resolve, tell
	// the voter outright instead of recreating an empty session that
	// could never reach consensus.
	partner, paired := m.Matcher.Partner(from)
	if !m.Sessions.Has(from, p.PartnerID) && (!paired || partner != p.PartnerID) {
		m.send(from, models.EventSaveResult, models.SaveResultPayload{Saved: false})
		return
	}

	vote := models.Vote{Save: p.Save, Mood: p.Mood, Note: p.Note, NoteType: p.NoteType}
	outcome := m.Sessions.RecordVote(from, p.PartnerID, vote)

	switch outcome.Status {
	case VoteWaiting:
		m.send(from, models.EventSaveWaiting, nil)
	case VoteResolved:
		for _, voter := range outcome.Voters {
			m.send(voter, models.EventSaveResult, outcome.Result)
		}
	}
}

func (m *ManagerService) handleNext(from string, data json.RawMessage) {
	var p models.PartnerRefPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			slog.Debug("bad next payload", "anonID", from, "err", err)
			return
		}
	}
	if p.PartnerID != "" {
		m.Sessions.Delete(from, p.PartnerID)
		m.send(p.PartnerID, models.EventPartnerLeft, nil)
	}
	m.Matcher.Leave(from)
	m.Matcher.RemovePair(from)
}

// handleEndChat dissolves the pairing but keeps the session: both sides
// still need it for the save vote.
func (m *ManagerService) handleEndChat(from string, data json.RawMessage) {
	var p models.PartnerRefPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			slog.Debug("bad end-chat payload", "anonID", from, "err", err)
			return
		}
	}
	if p.PartnerID != "" {
		m.send(p.PartnerID, models.EventPartnerLeft, nil)
	}
	m.Matcher.RemovePair(from)
}

func (m *ManagerService) handleViolation(c Client, data json.RawMessage) {
	from := c.GetAnonID()
	var p models.ViolationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	_, disconnect := m.Moderation.Record(from, p.Type)

	if p.PartnerID != "" {
		m.Sessions.Delete(from, p.PartnerID)
		m.send(p.PartnerID, models.EventPartnerLeft, nil)
		m.Matcher.RemovePair(from)
	}

	if disconnect {
		slog.Warn("violation threshold crossed, disconnecting", "anonID", from)
		m.unregister(c)
	}
}

// send delivers an event to a client if it is still connected; it
// drops the event otherwise. A client whose send buffer is full is
// treated as dead and unregistered.
func (m *ManagerService) send(to, event string, payload any) {
	client, ok := m.Clients[to]
	if !ok {
		return
	}
	env, err := models.Wrap(event, payload)
	if err != nil {
		slog.Error("encode payload failed", "event", event, "err", err)
		return
	}
	select {
	case client.GetSendChannel() <- env:
	default:
		slog.Warn("send buffer full, dropping client", "anonID", to)
		m.unregister(client)
	}
}
