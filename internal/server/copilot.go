package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetCopilotPlan(c *gin.Context) {
	plan, err := s.copilot.Plan(c.Request.Context(), ownerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
