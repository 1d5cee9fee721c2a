package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SavedChat is a journal entry persisted after a mutual save. The
// session token identifies the owner's local journal, not a user
// account; the coordination core never reads this table.
type SavedChat struct {
	ID           string `gorm:"primaryKey" json:"id"`
	SessionToken string `gorm:"type:text;not null;index" json:"sessionToken"`
	// Mood is the emoji/enum picked on the post-chat screen; nullable.
	Mood     *string `gorm:"type:text" json:"mood"`
	Note     string  `gorm:"type:text" json:"note"`
	NoteType string  `gorm:"type:text" json:"noteType"` // "learned" or "advice"
	// Duration of the chat in milliseconds as reported by the client.
	Duration  int64     `json:"duration"`
	PartnerID string    `gorm:"type:text" json:"partnerId"`
	SavedAt   time.Time `gorm:"autoCreateTime" json:"savedAt"`
}

// BeforeCreate generates the entry ID when the caller did not set one.
func (c *SavedChat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.NoteType == "" {
		c.NoteType = "learned"
	}
	return
}
