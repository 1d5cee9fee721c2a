package storage

import (
	"context"
	"errors"
	"log/slog"

	"stringchat/backend/internal/config"
	"stringchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("storage: not found")

// Storage is the persistence boundary for everything that outlives a
// connection: journal entries, abuse reports, and moderation counters.
// The real-time coordination state never goes through here.
type Storage interface {
	SaveChat(chat *models.SavedChat) error
	GetChatsBySession(sessionToken string) ([]models.SavedChat, error)
	DeleteChat(sessionToken, chatID string) error

	SaveReport(report *models.Report) error
	ListReports(status string) ([]models.Report, error)
	UpdateReportStatus(reportID, status string) error

	// Violation counters live in Redis with a rolling window so a
	// misbehaving connection id ages out on its own.
	IncrViolation(anonID string) (int64, error)
	ClearViolations(anonID string) error
}

// Service implements Storage on PostgreSQL (GORM) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService wires the two backends. Redis may be nil for CLI
// tools that only touch PostgreSQL.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveChat persists a journal entry.
func (s *Service) SaveChat(chat *models.SavedChat) error {
	if err := s.DB.Create(chat).Error; err != nil {
		slog.Error("save chat failed", "session", chat.SessionToken, "err", err)
		return err
	}
	return nil
}

// GetChatsBySession returns all journal entries for a session token,
// oldest first. An unknown token yields an empty list, not an error.
func (s *Service) GetChatsBySession(sessionToken string) ([]models.SavedChat, error) {
	var chats []models.SavedChat
	err := s.DB.Where("session_token = ?", sessionToken).
		Order("saved_at asc").
		Find(&chats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chats, nil
		}
		return nil, err
	}
	return chats, nil
}

// DeleteChat removes one journal entry belonging to the session token.
func (s *Service) DeleteChat(sessionToken, chatID string) error {
	result := s.DB.Where("session_token = ? AND id = ?", sessionToken, chatID).
		Delete(&models.SavedChat{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveReport persists an abuse report.
func (s *Service) SaveReport(report *models.Report) error {
	if err := s.DB.Create(report).Error; err != nil {
		slog.Error("save report failed", "partner", report.ReportedPartner, "err", err)
		return err
	}
	return nil
}

// ListReports returns reports, newest first, optionally filtered by
// status ("" means all).
func (s *Service) ListReports(status string) ([]models.Report, error) {
	var reports []models.Report
	q := s.DB.Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// UpdateReportStatus moves a report through the review workflow.
func (s *Service) UpdateReportStatus(reportID, status string) error {
	result := s.DB.Model(&models.Report{}).
		Where("id = ?", reportID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrViolation bumps the moderation counter for a connection id and
// returns the new count. The key expires after the violation window.
func (s *Service) IncrViolation(anonID string) (int64, error) {
	key := "violations:" + anonID
	count, err := s.Redis.Incr(s.Ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		s.Redis.Expire(s.Ctx, key, config.ViolationWindow)
	}
	return count, nil
}

// ClearViolations drops the counter (connection gone).
func (s *Service) ClearViolations(anonID string) error {
	return s.Redis.Del(s.Ctx, "violations:"+anonID).Err()
}
