package server

import (
	"errors"
	"net/http"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/accounts"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/replicas"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type codedError interface {
	Code() string
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{target: social.ErrMalformedRequest, status: http.StatusBadRequest, code: "invalid_request"},
	{target: replicas.ErrInvalidPair, status: http.StatusBadRequest, code: "invalid_pair"},
	{target: accounts.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
	{target: accounts.ErrUserExists, status: http.StatusConflict, code: "user_exists"},
	{target: replicas.ErrUnknownUser, status: http.StatusNotFound, code: "unknown_user"},
	{target: replicas.ErrInvalidAssignment, status: http.StatusConflict, code: "invalid_assignment"},
	{target: replicas.ErrNoReplicasAvailable, status: http.StatusServiceUnavailable, code: "no_replicas_available"},
	{target: replicas.ErrPairUnavailable, status: http.StatusServiceUnavailable, code: "pair_unavailable"},
	{target: store.ErrStoreUnavailable, status: http.StatusServiceUnavailable, code: "store_unavailable"},
}

// classifyError maps a domain error onto an HTTP status and a stable error code.
// Service errors keep their own "<op>.<reason>" code.
func classifyError(err error) (int, string) {
	status, code := http.StatusInternalServerError, "internal_error"
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			status, code = mapping.status, mapping.code
			break
		}
	}
	var coded codedError
	if errors.As(err, &coded) && coded.Code() != "" {
		code = coded.Code()
	}
	return status, code
}

func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("operation", operation),
			zap.String("code", code),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code})
}
