package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// StatusOf maps the error taxonomy onto an HTTP status and error code.
func StatusOf(err error) (int, string) {
	var se *model.SolverError
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusUnprocessableEntity, "INVALID_CONFIGURATION"
	case errors.Is(err, model.ErrInfeasible):
		return http.StatusUnprocessableEntity, "INFEASIBLE"
	case errors.As(err, &se) && se.Kind == model.SolverTimeout:
		return http.StatusGatewayTimeout, "SOLVER_TIMEOUT"
	case errors.As(err, &se):
		return http.StatusInternalServerError, "SOLVER_" + strings.ToUpper(se.Kind.String())
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := StatusOf(err)
	detail := ErrorDetail{Code: code, Message: err.Error()}
	var ie *model.InfeasibleError
	if errors.As(err, &ie) {
		detail.Details = map[string]any{"hour": ie.Hour, "reason": ie.Reason}
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		detail.Details = map[string]any{"field": ve.Field}
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: detail})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
	})
}
