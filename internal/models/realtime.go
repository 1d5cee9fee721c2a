package models

import "encoding/json"

// Event names exchanged over the per-connection socket. The two sets
// form a closed protocol: anything outside ClientEvents is dropped at
// the websocket boundary before it can reach a state machine.
const (
	// Client -> server
	EventJoinQueue  = "join-queue"
	EventLeaveQueue = "leave-queue"
	EventOffer      = "offer"
	EventAnswer     = "answer"
	EventCandidate  = "ice-candidate"
	EventChat       = "chat-message"
	EventSaveVote   = "save-vote"
	EventNext       = "next"
	EventEndChat    = "end-chat"
	EventViolation  = "moderation-violation"

	// Server -> client
	EventMatched     = "matched"
	EventWaiting     = "waiting"
	EventSaveWaiting = "save-waiting"
	EventSaveResult  = "save-result"
	EventPartnerLeft = "partner-left"
)

var clientEvents = map[string]bool{
	EventJoinQueue:  true,
	EventLeaveQueue: true,
	EventOffer:      true,
	EventAnswer:     true,
	EventCandidate:  true,
	EventChat:       true,
	EventSaveVote:   true,
	EventNext:       true,
	EventEndChat:    true,
	EventViolation:  true,
}

// ValidClientEvent reports whether name belongs to the closed set of
// events a client may send.
func ValidClientEvent(name string) bool { return clientEvents[name] }

// Envelope is the wire frame for every socket event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Wrap marshals payload into an Envelope for the given event.
func Wrap(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// JoinQueuePayload carries opaque matching preferences. They are stored
// with the waiting entry but not consulted (reserved extension point).
type JoinQueuePayload struct {
	Preferences json.RawMessage `json:"preferences,omitempty"`
}

// SignalPayload carries WebRTC negotiation material between two peers.
// The server treats Offer/Answer/Candidate as opaque blobs.
type SignalPayload struct {
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ChatSendPayload is a client's outgoing text message.
type ChatSendPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// ChatRecvPayload is the relayed form delivered to the recipient.
type ChatRecvPayload struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// SaveVotePayload is one participant's save decision plus journal
// metadata captured on the post-chat screen.
type SaveVotePayload struct {
	PartnerID string  `json:"partnerId"`
	Save      bool    `json:"save"`
	Mood      *string `json:"mood"`
	Note      string  `json:"note"`
	NoteType  string  `json:"noteType"`
}

// PartnerRefPayload references the current partner (next / end-chat).
type PartnerRefPayload struct {
	PartnerID string `json:"partnerId"`
}

// ViolationPayload is emitted by the client-side moderation model when
// it flags the local stream.
type ViolationPayload struct {
	PartnerID string `json:"partnerId"`
	Type      string `json:"type"`
}

// MatchedPayload tells a participant who their partner is and whether
// they drive the offer/answer exchange.
type MatchedPayload struct {
	PartnerID string `json:"partnerId"`
	Initiator bool   `json:"initiator"`
}

// SaveResultPayload is the consensus outcome, delivered identically to
// both participants. Messages/Votes/SessionKey are present only when
// both voted to save.
type SaveResultPayload struct {
	Saved      bool            `json:"saved"`
	Messages   []Message       `json:"messages,omitempty"`
	Votes      map[string]Vote `json:"votes,omitempty"`
	SessionKey string          `json:"sessionKey,omitempty"`
}
