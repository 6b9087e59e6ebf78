package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
)

type APIError struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Transition string `json:"transition,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondDomainError maps aggregate error codes onto HTTP statuses.
func RespondDomainError(c *gin.Context, err error) {
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) {
		RespondError(c, http.StatusInternalServerError, string(domainagg.CodeInternal), errors.New("internal error"))
		return
	}
	status := StatusFor(aggErr.Code)
	msg := aggErr.Message
	if status == http.StatusInternalServerError {
		// store and encoding failures stay in the logs
		msg = "internal error"
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message:    msg,
			Code:       string(aggErr.Code),
			EntityID:   aggErr.EntityID,
			Transition: aggErr.Transition,
		},
	})
}

func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound, domainagg.CodeNoActiveVersion:
		return http.StatusNotFound
	case domainagg.CodeImmutableVersion,
		domainagg.CodeDuplicateAssignment,
		domainagg.CodeConflict,
		domainagg.CodeConcurrentActivation,
		domainagg.CodeConcurrentModification,
		domainagg.CodeStaleInteraction,
		domainagg.CodeStepLocked,
		domainagg.CodeInvalidTransition,
		domainagg.CodePreconditionFailed:
		return http.StatusConflict
	case domainagg.CodeComponentNotInSnapshot:
		return http.StatusUnprocessableEntity
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
