package handler

import (
	"net/http"

	"stringchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

type createReportRequest struct {
	Reason          string   `json:"reason" binding:"required"`
	Description     string   `json:"description"`
	ReporterSession string   `json:"reporterSession"`
	ReportedPartner string   `json:"reportedPartner"`
	ChatDuration    int64    `json:"chatDuration"`
	LoggedMessages  []string `json:"loggedMessages"`
}

// CreateReport files an abuse report and fires the ops alert.
func (h *Handler) CreateReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reason is required"})
		return
	}

	report := &models.Report{
		Reason:          req.Reason,
		Description:     req.Description,
		ReporterSession: orDefault(req.ReporterSession, "anonymous"),
		ReportedPartner: orDefault(req.ReportedPartner, "unknown"),
		ChatDuration:    req.ChatDuration,
		LoggedMessages:  pq.StringArray(req.LoggedMessages),
	}
	if err := h.Storage.SaveReport(report); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit report"})
		return
	}

	go h.Alerts.ReportFiled(report)

	c.JSON(http.StatusCreated, gin.H{"success": true, "reportId": report.ID})
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
