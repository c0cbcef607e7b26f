package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
)

type APIError struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError maps the error taxonomy onto HTTP statuses in one place so
// handlers stay thin.
func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	status := http.StatusInternalServerError
	switch ae.Kind {
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindConflict:
		status = http.StatusConflict
	case apierr.KindInvalidState:
		status = http.StatusUnprocessableEntity
	case apierr.KindForbidden:
		status = http.StatusForbidden
	case apierr.KindUnauthorized:
		status = http.StatusUnauthorized
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: ae.Error(),
			Code:    ae.Code,
			Details: ae.Details,
		},
	})
}

func RespondBadRequest(c *gin.Context, code string, err error) {
	msg := "bad request"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
