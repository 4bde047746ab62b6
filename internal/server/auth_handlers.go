package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type resolvePayload struct {
	Username   string `json:"user"`
	PairID     string `json:"pairId"`
	ChatServer string `json:"chatServer"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	result, err := h.accounts.Register(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		h.respondError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	result, err := h.accounts.Login(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		h.respondError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleListAccounts(c *gin.Context) {
	names, err := h.accounts.Usernames(c.Request.Context())
	if err != nil {
		h.respondError(c, "list_accounts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": names})
}

func (h *httpHandler) handleResolve(c *gin.Context) {
	resolution, err := h.resolver.Lookup(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondError(c, "resolve", err)
		return
	}
	c.JSON(http.StatusOK, resolvePayload{
		Username:   resolution.Username,
		PairID:     resolution.PairID,
		ChatServer: resolution.ActiveAddress,
	})
}
