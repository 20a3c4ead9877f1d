package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// errorBody is the envelope every error response uses. Clients branch on
// the code; the message is informational only.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps a domain error onto its HTTP status and stable code.
func respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	c.JSON(statusFor(code), errorBody{Error: errorDetail{
		Code:    code,
		Message: err.Error(),
	}})
}

func statusFor(code string) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeProvider, domain.CodeMalformed, domain.CodeExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
