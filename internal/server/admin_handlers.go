package server

import (
	"net/http"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/replicas"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// serverPairPayload renders an outage as a null active address.
type serverPairPayload struct {
	PairID         string  `json:"pairId"`
	PrimaryAddress string  `json:"primaryAddress"`
	StandbyAddress string  `json:"standbyAddress,omitempty"`
	ActiveAddress  *string `json:"activeAddress"`
}

func newServerPairPayload(pair replicas.ServerPair) serverPairPayload {
	payload := serverPairPayload{
		PairID:         pair.PairID,
		PrimaryAddress: pair.PrimaryAddress,
		StandbyAddress: pair.StandbyAddress,
	}
	if active, ok := pair.Active(); ok {
		payload.ActiveAddress = &active
	}
	return payload
}

type addPairRequest struct {
	PairID         string `json:"pairId"`
	PrimaryAddress string `json:"primaryAddress"`
	StandbyAddress string `json:"standbyAddress"`
}

type reassignRequest struct {
	PairID string `json:"pairId"`
}

func (h *httpHandler) handleListPairs(c *gin.Context) {
	pairs, err := h.registry.Pairs(c.Request.Context())
	if err != nil {
		h.respondError(c, "list_pairs", err)
		return
	}
	payload := make([]serverPairPayload, 0, len(pairs))
	for _, pair := range pairs {
		payload = append(payload, newServerPairPayload(pair))
	}
	c.JSON(http.StatusOK, gin.H{"pairs": payload})
}

func (h *httpHandler) handleAddPair(c *gin.Context) {
	var request addPairRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	pair, err := h.registry.AddPair(c.Request.Context(), replicas.ServerPair{
		PairID:         request.PairID,
		PrimaryAddress: request.PrimaryAddress,
		StandbyAddress: request.StandbyAddress,
	})
	if err != nil {
		h.respondError(c, "add_pair", err)
		return
	}
	c.JSON(http.StatusCreated, newServerPairPayload(pair))
}

func (h *httpHandler) handleReassign(c *gin.Context) {
	var request reassignRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.PairID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	username := c.Param("username")
	if err := h.registry.Reassign(c.Request.Context(), username, request.PairID); err != nil {
		h.respondError(c, "reassign", err)
		return
	}
	h.logger.Info("user reassigned by operator",
		zap.String("user", username),
		zap.String("pair_id", request.PairID))
	c.JSON(http.StatusOK, gin.H{"user": username, "pairId": request.PairID})
}
