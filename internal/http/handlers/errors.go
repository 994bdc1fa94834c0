package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archiletras/fichas-backend/internal/domain"
)

type errorBody struct {
	Code          string            `json:"code"`
	Message       string            `json:"message"`
	MissingFields []string          `json:"missing_fields,omitempty"`
	ExistingIDs   []string          `json:"existing_ids,omitempty"`
	Providers     map[string]string `json:"providers,omitempty"`
}

// respondError maps the domain taxonomy onto HTTP statuses and a structured
// body. Unclassified errors become a bare 500.
func respondError(c *gin.Context, err error) {
	de := domain.AsError(err)
	if de == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{
			Code:    string(domain.CodeInternal),
			Message: "internal error",
		}})
		return
	}
	c.JSON(statusFor(de.Code), gin.H{"error": errorBody{
		Code:          string(de.Code),
		Message:       de.Message,
		MissingFields: de.MissingFields,
		ExistingIDs:   de.ExistingIDs,
		Providers:     de.PerProvider,
	}})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeTypeMismatch, domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeNotReady:
		return http.StatusUnprocessableEntity
	case domain.CodeAllProvidersFailed, domain.CodeSyncFailed:
		return http.StatusBadGateway
	case domain.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
