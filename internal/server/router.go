package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/accounts"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/auth"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/presence"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/pushbus"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/replicas"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	usernameContextKey       = "social_username"
	accessTokenQueryParam    = "access_token"
	defaultHeartbeatInterval = 15 * time.Second
)

var (
	errMissingAccounts      = errors.New("accounts dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingSocialReader  = errors.New("social reader dependency required")
	errMissingLiveWriter    = errors.New("live writer dependency required")
	errMissingRegistry      = errors.New("replica registry dependency required")
	errMissingAllocator     = errors.New("replica allocator dependency required")
	errMissingPresence      = errors.New("presence tracker dependency required")
	errMissingSubscriber    = errors.New("push bus dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

type AccountService interface {
	Register(ctx context.Context, username, password string) (accounts.RegisterResult, error)
	Login(ctx context.Context, username, password string) (accounts.LoginResult, error)
	Usernames(ctx context.Context) ([]string, error)
}

type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

type SocialReader interface {
	Chats(ctx context.Context, viewer string) (map[string][]social.ChatMessage, error)
	Users(ctx context.Context, viewer string) ([]social.UserView, error)
	Timeline(ctx context.Context, viewer string) ([]social.PostMessage, error)
}

// LiveWriter persists client actions and pushes them to connected recipients.
type LiveWriter interface {
	RecordChat(ctx context.Context, draft social.ChatDraft) (social.ChatMessage, error)
	RecordPost(ctx context.Context, draft social.PostDraft) (social.PostMessage, error)
	RecordFollowChange(ctx context.Context, follower, target social.Username, action social.FollowAction) (social.FollowEvent, error)
}

type ReplicaRegistry interface {
	Pairs(ctx context.Context) ([]replicas.ServerPair, error)
	AddPair(ctx context.Context, pair replicas.ServerPair) (replicas.ServerPair, error)
	Reassign(ctx context.Context, user, pairID string) error
}

type ReplicaResolver interface {
	Lookup(ctx context.Context, user string) (replicas.Resolution, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, topics ...pushbus.Topic) (<-chan pushbus.Event, func())
}

type Dependencies struct {
	Accounts          AccountService
	TokenManager      TokenValidator
	Social            SocialReader
	Live              LiveWriter
	Registry          ReplicaRegistry
	Resolver          ReplicaResolver
	Presence          *presence.Tracker
	Bus               Subscriber
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Accounts == nil:
		return nil, errMissingAccounts
	case deps.TokenManager == nil:
		return nil, errMissingTokenManager
	case deps.Social == nil:
		return nil, errMissingSocialReader
	case deps.Live == nil:
		return nil, errMissingLiveWriter
	case deps.Registry == nil:
		return nil, errMissingRegistry
	case deps.Resolver == nil:
		return nil, errMissingAllocator
	case deps.Presence == nil:
		return nil, errMissingPresence
	case deps.Bus == nil:
		return nil, errMissingSubscriber
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		accounts:  deps.Accounts,
		tokens:    deps.TokenManager,
		social:    deps.Social,
		live:      deps.Live,
		registry:  deps.Registry,
		resolver:  deps.Resolver,
		presence:  deps.Presence,
		bus:       deps.Bus,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router.GET("/health", handler.handleHealth)

	authGroup := router.Group("/auth")
	authGroup.POST("/register", handler.handleRegister)
	authGroup.POST("/login", handler.handleLogin)
	authGroup.GET("/users", handler.handleListAccounts)
	authGroup.GET("/resolve/:username", handler.handleResolve)

	admin := router.Group("/admin")
	admin.GET("/servers", handler.handleListPairs)
	admin.POST("/servers", handler.handleAddPair)
	admin.PUT("/assignments/:username", handler.handleReassign)

	chat := router.Group("/chat")
	chat.GET("/stream", handler.authorizeStream, handler.handleStream)

	protected := chat.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/messages", handler.handleSendMessage)
	protected.POST("/posts", handler.handleCreatePost)
	protected.POST("/follow", handler.handleFollow)
	protected.POST("/unfollow", handler.handleUnfollow)
	protected.GET("/users", handler.handleListUsers)
	protected.GET("/chats", handler.handleListChats)
	protected.GET("/timeline", handler.handleTimeline)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept", "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	accounts  AccountService
	tokens    TokenValidator
	social    SocialReader
	live      LiveWriter
	registry  ReplicaRegistry
	resolver  ReplicaResolver
	presence  *presence.Tracker
	bus       Subscriber
	heartbeat time.Duration
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	h.authorizeToken(c, strings.TrimPrefix(header, "Bearer "))
}

// authorizeStream also accepts the token as a query parameter since EventSource
// clients cannot set headers.
func (h *httpHandler) authorizeStream(c *gin.Context) {
	if token := c.Query(accessTokenQueryParam); strings.TrimSpace(token) != "" {
		h.authorizeToken(c, token)
		return
	}
	h.authorizeRequest(c)
}

func (h *httpHandler) authorizeToken(c *gin.Context, rawToken string) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(usernameContextKey, subject)
	c.Next()
}
