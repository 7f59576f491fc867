package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	"go.uber.org/zap"
)

type paymentLinkRequest struct {
	PayerEmail string `json:"payer_email"`
}

func (s *Server) RequestPaymentLink(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req paymentLinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	link, err := s.checkout.RequestPaymentLink(c.Request.Context(), ownerID(c), id, req.PayerEmail)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (s *Server) CreateProposalSession(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req paymentLinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	session, err := s.checkout.CreateProposalSession(c.Request.Context(), ownerID(c), id, req.PayerEmail)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// HandlePaymentWebhook ingests a provider delivery. Everything past
// signature verification is acknowledged with 200 so providers stop
// retrying: replays, unroutable references and non-matches are
// reported in the body, never the status code.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.webhooks.IngestWebhook(c.Request.Context(), provider, c.Request.Header, c.Request.URL.Query(), body)
	if err != nil {
		switch {
		case errors.Is(err, paymentdomain.ErrInvalidSignature),
			errors.Is(err, paymentdomain.ErrInvalidPayload),
			errors.Is(err, paymentdomain.ErrProviderNotFound):
			s.metrics.WebhooksReceived.WithLabelValues(provider, "rejected").Inc()
			AbortWithError(c, err)
		default:
			// Processing failed after verification. Log and ack so the
			// provider does not retry into the same failure.
			s.log.Error("webhook processing failed",
				zap.String("provider", provider),
				zap.Error(err),
			)
			s.metrics.WebhooksReceived.WithLabelValues(provider, "error").Inc()
			c.JSON(http.StatusOK, paymentdomain.WebhookResult{Ignored: true, Reason: "processing_error"})
		}
		return
	}

	s.metrics.WebhooksReceived.WithLabelValues(provider, webhookOutcome(result)).Inc()
	if result.Duplicate {
		s.metrics.WebhooksDuplicate.WithLabelValues(provider).Inc()
	}

	c.JSON(http.StatusOK, result)
}

func webhookOutcome(result *paymentdomain.WebhookResult) string {
	switch {
	case result.Duplicate:
		return "duplicate"
	case result.Ignored:
		return "ignored"
	default:
		return "handled"
	}
}
