package models

// Message is one transcript entry of an ephemeral session.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Vote is one participant's half of the save-vote consensus.
type Vote struct {
	Save     bool    `json:"save"`
	Mood     *string `json:"mood"`
	Note     string  `json:"note"`
	NoteType string  `json:"noteType"` // "learned" or "advice"
}
