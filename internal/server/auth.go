package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type devTokenRequest struct {
	UserID   string `json:"user_id"`
	TTLHours int    `json:"ttl_hours"`
}

// IssueDevToken mints a bearer token for local development; the route
// is never registered in production.
func (s *Server) IssueDevToken(c *gin.Context) {
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil || userID == 0 {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "user_id must be a snowflake id"))
		return
	}

	token, err := s.authn.Issue(userID, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
