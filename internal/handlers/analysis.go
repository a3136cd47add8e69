package handlers

import (
	"log/slog"
	"net/http"

	"skincheck-back/internal/insights"

	"github.com/gin-gonic/gin"
)

func DashboardStats(svc *insights.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Dashboard(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func Trends(svc *insights.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.Trends(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func RiskAssessment(svc *insights.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.RiskAssessment(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
