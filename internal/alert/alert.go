// Package alert pushes operational notifications to a Telegram chat.
// Currently the only alert is a newly filed abuse report.
package alert

import (
	"fmt"
	"log/slog"

	"stringchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends alerts through a Telegram bot. A nil Notifier (no
// token configured) silently does nothing, so call sites never branch.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier authenticates the bot. An empty token disables alerting
// and returns a nil notifier without error.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("alert bot auth: %w", err)
	}
	bot.Debug = false
	slog.Info("alert bot authorized", "account", bot.Self.UserName)
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// ReportFiled announces a new abuse report. Failures are logged and
// swallowed: alerting must never fail a request.
func (n *Notifier) ReportFiled(report *models.Report) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("New abuse report %s\nReason: %s\nPartner: %s\nDuration: %dms",
		report.ID, report.Reason, report.ReportedPartner, report.ChatDuration)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		slog.Error("report alert failed", "reportID", report.ID, "err", err)
	}
}
