package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"goa.design/goa/v3/security"
	"gorm.io/gorm"

	"grantdesk/internal/domain"
	"grantdesk/internal/metrics"
	"grantdesk/internal/util"
)

type contextKey string

const (
	userContextKey   contextKey = "user"
	claimsContextKey contextKey = "claims"
)

// Scopes checked by JWTAuth
const (
	ScopeAdmin = "admin"
	ScopeStaff = "staff"
)

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

// ClaimsFromContext returns the validated token claims, if any
func ClaimsFromContext(ctx context.Context) (*util.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*util.Claims)
	return claims, ok
}

// AuthService handles logins and token checks for founders and the admin team
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// JWTAuth implements the authorization logic for the JWT security scheme
func (s *AuthService) JWTAuth(ctx context.Context, token string, schema *security.JWTScheme) (context.Context, error) {
	claims, err := util.ValidateToken(token)
	if err != nil {
		return nil, MakeUnauthorized(fmt.Errorf("invalid or expired token"))
	}

	user, err := util.GetUserFromToken(s.db.WithContext(ctx), claims)
	if err != nil {
		return nil, MakeUnauthorized(fmt.Errorf("user not found or inactive"))
	}

	if schema != nil && len(schema.RequiredScopes) > 0 {
		hasScope := false
		for _, requiredScope := range schema.RequiredScopes {
			if requiredScope == ScopeAdmin && user.IsAdmin {
				hasScope = true
				break
			}
			if requiredScope == ScopeStaff && user.CanModerate() {
				hasScope = true
				break
			}
		}
		if !hasScope {
			return nil, MakeForbidden(fmt.Errorf("insufficient permissions"))
		}
	}

	ctx = context.WithValue(ctx, userContextKey, user)
	ctx = context.WithValue(ctx, claimsContextKey, claims)
	return ctx, nil
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login checks credentials and issues a token
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	log.Printf("[AUTH] Login attempt for user: %s", username)

	var user domain.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		metrics.RecordAuthAttempt(false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[AUTH] Login failed: user '%s' not found", username)
			return nil, MakeUnauthorized(fmt.Errorf("incorrect username or password"))
		}
		log.Printf("[AUTH] Login failed: database error for user '%s': %v", username, err)
		return nil, err
	}

	if !util.CheckPasswordHash(password, user.HashedPassword) {
		log.Printf("[AUTH] Login failed: invalid password for user '%s'", username)
		metrics.RecordAuthAttempt(false)
		return nil, MakeUnauthorized(fmt.Errorf("incorrect username or password"))
	}

	if !user.IsActive {
		log.Printf("[AUTH] Login failed: user '%s' is inactive", username)
		metrics.RecordAuthAttempt(false)
		return nil, MakeUnauthorized(fmt.Errorf("user account is inactive"))
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		log.Printf("[AUTH] Warning: failed to record last login for '%s': %v", username, err)
	}

	token, err := util.GenerateToken(&user)
	if err != nil {
		log.Printf("[AUTH] Login failed: token generation error for user '%s': %v", username, err)
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	log.Printf("[AUTH] Login successful for user '%s' (uid=%s, admin=%v, staff=%v)", username, user.UID, user.IsAdmin, user.IsStaff)
	metrics.RecordAuthAttempt(true)

	return &LoginResult{AccessToken: token, TokenType: "bearer"}, nil
}

// CreateUserInput describes a new account
type CreateUserInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  bool    `json:"is_admin"`
	IsStaff  bool    `json:"is_staff"`
}

// CreateUser registers a founder or team member account
func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := domain.NormalizeEmail(in.Email)
	password := strings.TrimSpace(in.Password)

	log.Printf("[AUTH] CreateUser request: username=%s", username)

	if username == "" || email == "" || len(password) < 8 {
		return nil, MakeBadRequest(fmt.Errorf("username, email and a password of at least 8 characters are required"))
	}

	db := s.db.WithContext(ctx)
	var existing domain.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		log.Printf("[AUTH] CreateUser failed: username '%s' already exists", username)
		return nil, MakeBadRequest(fmt.Errorf("username already registered"))
	}
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Printf("[AUTH] CreateUser failed: email already registered for '%s'", username)
		return nil, MakeBadRequest(fmt.Errorf("email already registered"))
	}

	hashedPassword, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.User{
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       in.IsActive == nil || *in.IsActive,
		IsAdmin:        in.IsAdmin,
		IsStaff:        in.IsStaff,
	}
	if in.FullName != nil {
		fullName := strings.TrimSpace(*in.FullName)
		user.FullName = &fullName
	}

	if err := db.Create(&user).Error; err != nil {
		log.Printf("[AUTH] CreateUser failed: database error: %v", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AUTH] CreateUser successful: username=%s, uid=%s", username, user.UID)
	return &user, nil
}

// Mount registers the auth endpoints
func (s *AuthService) Mount(mux muxer) {
	mux.Handle(http.MethodPost, "/api/v1/auth/login", s.handleLogin)
	mux.Handle(http.MethodGet, "/api/v1/auth/me", s.Require(s.handleMe))
	mux.Handle(http.MethodPost, "/api/v1/auth/users", s.Require(s.handleCreateUser, ScopeAdmin))
}

func (s *AuthService) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	result, err := s.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, result)
}

func (s *AuthService) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(r.Context(), w, http.StatusOK, user)
}

func (s *AuthService) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserInput
	if err := decodeBody(r, &in); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	user, err := s.CreateUser(r.Context(), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, user)
}
