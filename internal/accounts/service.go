package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/replicas"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists indicates a registration for a taken username.
	ErrUserExists = errors.New("accounts: user already exists")
	// ErrInvalidCredentials indicates an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("accounts: invalid username or password")

	errMissingStore     = errors.New("store is required")
	errMissingAllocator = errors.New("allocator is required")
	errMissingDirectory = errors.New("directory is required")
	errMissingTokens    = errors.New("token issuer is required")
)

// Allocator hands out and resolves replica pair assignments.
type Allocator interface {
	Assign(ctx context.Context, user string) (string, error)
	Resolve(ctx context.Context, user string) (replicas.Resolution, error)
}

// Directory makes a registered user visible in the social graph.
type Directory interface {
	EnsureUser(ctx context.Context, user social.Username) error
}

// TokenIssuer signs client session tokens.
type TokenIssuer interface {
	IssueSessionToken(ctx context.Context, username string) (string, int64, error)
}

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "accounts.service.new"
	opRegister        = "accounts.register"
	opLogin           = "accounts.login"
	opUsernames       = "accounts.usernames"
	reasonInvalid     = "invalid_request"
	reasonExists      = "user_exists"
	reasonCredentials = "invalid_credentials"
	reasonAllocate    = "allocation_failed"
	reasonResolve     = "resolve_failed"
	reasonHash        = "hash_failed"
	reasonRead        = "store_read_failed"
	reasonWrite       = "store_write_failed"
	reasonDirectory   = "directory_failed"
	reasonToken       = "token_issue_failed"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

type ServiceConfig struct {
	Store      store.Store
	Allocator  Allocator
	Directory  Directory
	Tokens     TokenIssuer
	BcryptCost int
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns the users collection: registration, login and the user listing.
type Service struct {
	store      store.Store
	allocator  Allocator
	directory  Directory
	tokens     TokenIssuer
	bcryptCost int
	clock      func() time.Time
	logger     *zap.Logger

	mu sync.Mutex
}

// RegisterResult reports the created user and the pair it was placed on.
type RegisterResult struct {
	Username string `json:"user"`
	PairID   string `json:"assignedPair"`
}

// LoginResult carries the session token and the replica the client should talk to.
type LoginResult struct {
	Username    string `json:"user"`
	PairID      string `json:"pairId"`
	ChatServer  string `json:"chatServer"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	case cfg.Allocator == nil:
		return nil, newServiceError(opServiceNew, "missing_allocator", errMissingAllocator)
	case cfg.Directory == nil:
		return nil, newServiceError(opServiceNew, "missing_directory", errMissingDirectory)
	case cfg.Tokens == nil:
		return nil, newServiceError(opServiceNew, "missing_tokens", errMissingTokens)
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      cfg.Store,
		allocator:  cfg.Allocator,
		directory:  cfg.Directory,
		tokens:     cfg.Tokens,
		bcryptCost: cost,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Register creates a user, assigns it a replica pair and adds it to the social graph.
// Nothing is stored when no pair can be assigned, and the account only exists once
// every step has succeeded.
func (s *Service) Register(ctx context.Context, rawUsername, password string) (RegisterResult, error) {
	username, err := social.NewUsername(rawUsername)
	if err != nil {
		return RegisterResult{}, newServiceError(opRegister, reasonInvalid, err)
	}
	if password == "" {
		return RegisterResult{}, newServiceError(opRegister, reasonInvalid,
			fmt.Errorf("%w: empty password", social.ErrMalformedRequest))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return RegisterResult{}, newServiceError(opRegister, reasonInvalid,
				fmt.Errorf("%w: %v", social.ErrMalformedRequest, err))
		}
		s.logError(opRegister, reasonHash, err)
		return RegisterResult{}, newServiceError(opRegister, reasonHash, err)
	}

	pairID, err := s.storeCredential(ctx, username, hash)
	if err != nil {
		return RegisterResult{}, err
	}

	s.logger.Info("user registered",
		zap.String("user", username.String()),
		zap.String("pair_id", pairID))
	return RegisterResult{Username: username.String(), PairID: pairID}, nil
}

func (s *Service) storeCredential(ctx context.Context, username social.Username, hash []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	document := usersDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionUsers, &document); err != nil {
		s.logError(opRegister, reasonRead, err)
		return "", newServiceError(opRegister, reasonRead, err)
	}
	if _, exists := document.lookup(username.String()); exists {
		return "", newServiceError(opRegister, reasonExists, ErrUserExists)
	}

	pairID, err := s.allocator.Assign(ctx, username.String())
	if err != nil {
		s.logError(opRegister, reasonAllocate, err, zap.String("user", username.String()))
		return "", newServiceError(opRegister, reasonAllocate, err)
	}

	// The credential is written last: a failure before it leaves a retryable
	// registration, and an assignment left behind is reused by the retry.
	if err := s.directory.EnsureUser(ctx, username); err != nil {
		s.logError(opRegister, reasonDirectory, err, zap.String("user", username.String()))
		return "", newServiceError(opRegister, reasonDirectory, err)
	}

	document.put(username.String(), hash, s.clock())
	if err := store.SaveJSON(ctx, s.store, store.CollectionUsers, document); err != nil {
		s.logError(opRegister, reasonWrite, err)
		return "", newServiceError(opRegister, reasonWrite, err)
	}
	return pairID, nil
}

// Login verifies the password and issues a session token. While the user's pair is in
// outage the primary address is returned so the client still has somewhere to go.
func (s *Service) Login(ctx context.Context, rawUsername, password string) (LoginResult, error) {
	username, err := social.NewUsername(rawUsername)
	if err != nil || password == "" {
		return LoginResult{}, newServiceError(opLogin, reasonInvalid,
			fmt.Errorf("%w: username and password are required", social.ErrMalformedRequest))
	}

	document := usersDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionUsers, &document); err != nil {
		s.logError(opLogin, reasonRead, err)
		return LoginResult{}, newServiceError(opLogin, reasonRead, err)
	}
	credential, ok := document.lookup(username.String())
	if !ok {
		return LoginResult{}, newServiceError(opLogin, reasonCredentials, ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, newServiceError(opLogin, reasonCredentials, ErrInvalidCredentials)
	}

	resolution, err := s.allocator.Resolve(ctx, username.String())
	chatServer := resolution.ActiveAddress
	switch {
	case errors.Is(err, replicas.ErrPairUnavailable):
		chatServer = resolution.PrimaryAddress
		s.logger.Warn("login during pair outage, falling back to primary",
			zap.String("user", username.String()),
			zap.String("pair_id", resolution.PairID))
	case err != nil:
		s.logError(opLogin, reasonResolve, err, zap.String("user", username.String()))
		return LoginResult{}, newServiceError(opLogin, reasonResolve, err)
	}

	token, expiresIn, err := s.tokens.IssueSessionToken(ctx, username.String())
	if err != nil {
		s.logError(opLogin, reasonToken, err)
		return LoginResult{}, newServiceError(opLogin, reasonToken, err)
	}

	return LoginResult{
		Username:    username.String(),
		PairID:      resolution.PairID,
		ChatServer:  chatServer,
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	}, nil
}

// Usernames lists every registered user, sorted.
func (s *Service) Usernames(ctx context.Context) ([]string, error) {
	document := usersDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionUsers, &document); err != nil {
		s.logError(opUsernames, reasonRead, err)
		return nil, newServiceError(opUsernames, reasonRead, err)
	}
	return document.names(), nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("accounts service error", attrs...)
}
