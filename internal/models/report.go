package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Report is an abuse report filed against a partner. LoggedMessages is
// a snapshot of recent transcript lines captured at filing time.
type Report struct {
	ID              string         `gorm:"primaryKey" json:"id"`
	Reason          string         `gorm:"type:text;not null" json:"reason"`
	Description     string         `gorm:"type:text" json:"description"`
	ReporterSession string         `gorm:"type:text" json:"reporterSession"`
	ReportedPartner string         `gorm:"type:text" json:"reportedPartner"`
	ChatDuration    int64          `json:"chatDuration"`
	LoggedMessages  pq.StringArray `gorm:"type:text[]" json:"loggedMessages"`
	Status          string         `gorm:"type:text;index" json:"status"` // "pending", "reviewed", "dismissed"
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

// BeforeCreate fills the ID and default status.
func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = "pending"
	}
	return
}
