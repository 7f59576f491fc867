package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
)

func (s *Server) ViewPublicContract(c *gin.Context) {
	contract, err := s.proposal.ViewByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

type signContractRequest struct {
	SignerName     string `json:"signer_name"`
	SignerDocument string `json:"signer_document"`
}

func (s *Server) SignContract(c *gin.Context) {
	var req signContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contract, err := s.proposal.SignContract(c.Request.Context(), proposaldomain.SignRequest{
		Token:          c.Param("token"),
		SignerName:     req.SignerName,
		SignerDocument: req.SignerDocument,
		RequesterIP:    c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

// GetPaymentPage resolves a proposal by public hash. When a pending
// payment link exists the caller can redirect straight to it.
func (s *Server) GetPaymentPage(c *gin.Context) {
	page, err := s.checkout.PaymentPage(c.Request.Context(), c.Param("hash"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
