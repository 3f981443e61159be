package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/nobg/apperr"
)

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type resultResponse struct {
	Result string `json:"result"`
	Name   string `json:"name,omitempty"`
}

// StatusFor 错误类型对应的 HTTP 状态码
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch apperr.KindOf(err) {
	case apperr.InvalidInput, apperr.UnsupportedFormat:
		return http.StatusBadRequest
	case apperr.ModelNotInitialized:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "request_id", c.GetString(requestIDKey), "error", err)
	}

	resp := errorResponse{Error: err.Error(), RequestID: c.GetString(requestIDKey)}
	if kind := apperr.KindOf(err); kind != apperr.Unknown {
		resp.Kind = kind.String()
	}
	c.AbortWithStatusJSON(status, resp)
}
