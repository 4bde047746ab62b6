package server

import (
	"net/http"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type createPostRequest struct {
	Text string `json:"text"`
}

type followRequest struct {
	Target string `json:"target"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	var request sendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	recipient, err := social.NewUsername(request.To)
	if err != nil {
		h.respondError(c, "send_message", err)
		return
	}
	message, err := h.live.RecordChat(c.Request.Context(), social.ChatDraft{
		From: currentUser(c),
		To:   recipient,
		Text: request.Text,
	})
	if err != nil {
		h.respondError(c, "send_message", err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var request createPostRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	post, err := h.live.RecordPost(c.Request.Context(), social.PostDraft{
		From: currentUser(c),
		Text: request.Text,
	})
	if err != nil {
		h.respondError(c, "create_post", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *httpHandler) handleFollow(c *gin.Context) {
	h.changeFollow(c, social.FollowActionFollow)
}

func (h *httpHandler) handleUnfollow(c *gin.Context) {
	h.changeFollow(c, social.FollowActionUnfollow)
}

func (h *httpHandler) changeFollow(c *gin.Context, action social.FollowAction) {
	var request followRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	target, err := social.NewUsername(request.Target)
	if err != nil {
		h.respondError(c, string(action), err)
		return
	}
	change, err := h.live.RecordFollowChange(c.Request.Context(), currentUser(c), target, action)
	if err != nil {
		h.respondError(c, string(action), err)
		return
	}
	c.JSON(http.StatusOK, change)
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	views, err := h.social.Users(c.Request.Context(), currentUser(c).String())
	if err != nil {
		h.respondError(c, "list_users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

func (h *httpHandler) handleListChats(c *gin.Context) {
	chats, err := h.social.Chats(c.Request.Context(), currentUser(c).String())
	if err != nil {
		h.respondError(c, "list_chats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *httpHandler) handleTimeline(c *gin.Context) {
	posts, err := h.social.Timeline(c.Request.Context(), currentUser(c).String())
	if err != nil {
		h.respondError(c, "timeline", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func currentUser(c *gin.Context) social.Username {
	return social.Username(c.GetString(usernameContextKey))
}
