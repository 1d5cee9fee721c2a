package config

import "time"

const (
	// Chat
	MaxMessageLen = 500

	// Save-vote consensus. A resolved session lingers for the grace
	// window so a late duplicate read still observes the same result.
	SessionPurgeGrace = 30 * time.Second

	// Ephemeral media. Sweep (eager) and read (lazy) expiry both derive
	// from MediaTTL; the two paths must never use different values.
	MediaTTL      = 24 * time.Hour
	SweepInterval = 60 * time.Second
	MaxUploadSize = 10 << 20 // 10MB

	// Moderation
	ViolationThreshold = 3
	ViolationWindow    = 24 * time.Hour
)
