package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type merchantConnectRequest struct {
	Code string `json:"code"`
}

func (s *Server) ConnectMerchantOAuth(c *gin.Context) {
	var req merchantConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status, err := s.merchant.ConnectOAuth(c.Request.Context(), ownerID(c), strings.TrimSpace(req.Code))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type merchantAPIKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) RegisterMerchantAPIKey(c *gin.Context) {
	var req merchantAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status, err := s.merchant.RegisterAPIKey(c.Request.Context(), ownerID(c), strings.TrimSpace(req.APIKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) GetMerchantStatus(c *gin.Context) {
	status, err := s.merchant.GetStatus(c.Request.Context(), ownerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) DisconnectMerchant(c *gin.Context) {
	if err := s.merchant.Disconnect(c.Request.Context(), ownerID(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}
