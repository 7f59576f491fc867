package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/soloware/dealdesk/internal/analytics/domain"
)

func queryPeriod(c *gin.Context) (analyticsdomain.Period, error) {
	return analyticsdomain.ParsePeriod(strings.TrimSpace(c.Query("period")))
}

func (s *Server) GetDashboard(c *gin.Context) {
	period, err := queryPeriod(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	dashboard, err := s.insights.Dashboard(c.Request.Context(), ownerID(c), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) GetKPIs(c *gin.Context) {
	period, err := queryPeriod(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	kpis, err := s.insights.KPIs(c.Request.Context(), ownerID(c), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}

func (s *Server) GetCharts(c *gin.Context) {
	period, err := queryPeriod(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	buckets, err := s.insights.Charts(c.Request.Context(), ownerID(c), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func (s *Server) GetHealth(c *gin.Context) {
	health, err := s.insights.Health(c.Request.Context(), ownerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) GetInsights(c *gin.Context) {
	period, err := queryPeriod(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	insights, err := s.insights.Insights(c.Request.Context(), ownerID(c), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (s *Server) GetActions(c *gin.Context) {
	actions, err := s.insights.Actions(c.Request.Context(), ownerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (s *Server) GetPendingRanked(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be an integer"))
			return
		}
		limit = parsed
	}

	items, err := s.insights.PendingRanked(c.Request.Context(), ownerID(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": items})
}

func (s *Server) GetSummary(c *gin.Context) {
	period, err := queryPeriod(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	summary, err := s.insights.Summary(c.Request.Context(), ownerID(c), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
