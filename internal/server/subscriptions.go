package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type subscriptionCheckoutRequest struct {
	Plan  string `json:"plan"`
	Email string `json:"email"`
}

func (s *Server) CreateSubscriptionCheckout(c *gin.Context) {
	var req subscriptionCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Plan) == "" {
		AbortWithError(c, newValidationError("plan", "invalid_plan", "plan is required"))
		return
	}

	session, err := s.checkout.CreateSubscriptionSession(c.Request.Context(), ownerID(c), req.Plan, req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) GetMySubscription(c *gin.Context) {
	sub, err := s.subs.GetForOwner(c.Request.Context(), ownerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{"subscription": nil, "active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub, "active": sub.Active()})
}
