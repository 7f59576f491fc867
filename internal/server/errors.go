package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/soloware/dealdesk/internal/analytics/domain"
	"github.com/soloware/dealdesk/internal/auth"
	merchantdomain "github.com/soloware/dealdesk/internal/merchant/domain"
	paymentdomain "github.com/soloware/dealdesk/internal/payment/domain"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string { return "validation error" }

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// ErrorHandlingMiddleware converts errors attached to the gin context
// into a single JSON error response. Handlers report failures through
// AbortWithError; nothing writes error bodies directly.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		status, payload := mapError(c.Errors.Last().Err)
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if field, code, ok := validationSentinel(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   field,
					Code:    code,
					Message: code,
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrNoIdentity),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictCode(err),
		}
	case errors.Is(err, paymentdomain.ErrUpstream),
		errors.Is(err, merchantdomain.ErrOAuthFailed),
		errors.Is(err, merchantdomain.ErrRefreshFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "payment provider unavailable",
		}
	case errors.Is(err, merchantdomain.ErrNotConfigured),
		errors.Is(err, paymentdomain.ErrInvalidConfig):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "provider not configured",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationSentinel(err error) (field, code string, ok bool) {
	switch {
	case errors.Is(err, proposaldomain.ErrInvalidTitle):
		return "title", "invalid_title", true
	case errors.Is(err, proposaldomain.ErrInvalidClient):
		return "client_name", "invalid_client", true
	case errors.Is(err, proposaldomain.ErrInvalidValue):
		return "value", "invalid_value", true
	case errors.Is(err, proposaldomain.ErrInvalidStatus):
		return "status", "invalid_status", true
	case errors.Is(err, proposaldomain.ErrInvalidTTL):
		return "ttl_hours", "invalid_ttl", true
	case errors.Is(err, proposaldomain.ErrInvalidSigner):
		return "signer_name", "invalid_signer", true
	case errors.Is(err, analyticsdomain.ErrInvalidPeriod):
		return "period", "invalid_period", true
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidReference):
		return "payload", "invalid_payload", true
	case errors.Is(err, merchantdomain.ErrInvalidCode):
		return "code", "invalid_code", true
	case errors.Is(err, merchantdomain.ErrInvalidAPIKey):
		return "api_key", "invalid_api_key", true
	case errors.Is(err, ErrInvalidRequest):
		return "request", "invalid_request", true
	default:
		return "", "", false
	}
}

// isNotFoundError also covers the share-token miss: unknown and
// expired tokens both come back as a plain 404 so the response leaks
// nothing about which one failed.
func isNotFoundError(err error) bool {
	return errors.Is(err, proposaldomain.ErrNotFound) ||
		errors.Is(err, proposaldomain.ErrShareTokenInvalid) ||
		errors.Is(err, paymentdomain.ErrPaymentNotFound) ||
		errors.Is(err, paymentdomain.ErrProviderNotFound)
}

func isConflictError(err error) bool {
	return errors.Is(err, proposaldomain.ErrLifecycleTerminal) ||
		errors.Is(err, proposaldomain.ErrAlreadySigned) ||
		errors.Is(err, proposaldomain.ErrNotSigned) ||
		errors.Is(err, paymentdomain.ErrProposalNotPayable) ||
		errors.Is(err, merchantdomain.ErrNotConnected) ||
		errors.Is(err, merchantdomain.ErrInvalidToken)
}

func conflictCode(err error) string {
	switch {
	case errors.Is(err, proposaldomain.ErrLifecycleTerminal):
		return "lifecycle_terminal"
	case errors.Is(err, proposaldomain.ErrAlreadySigned):
		return "contract_already_signed"
	case errors.Is(err, proposaldomain.ErrNotSigned):
		return "contract_not_signed"
	case errors.Is(err, paymentdomain.ErrProposalNotPayable):
		return "proposal_not_payable"
	case errors.Is(err, merchantdomain.ErrNotConnected):
		return "merchant_not_connected"
	default:
		return "conflict"
	}
}
