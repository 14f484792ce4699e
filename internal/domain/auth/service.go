package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"gorm.io/gorm"

	"github.com/nethira/chatcore/internal/domain/audit"
	"github.com/nethira/chatcore/internal/domain/session"
	"github.com/nethira/chatcore/internal/domain/user"
)

// TokenPair is an access/refresh token pair bound to one session
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResponse represents the response from a successful login
type LoginResponse struct {
	TokenPair
	SessionID string         `json:"session_id"`
	User      *user.Response `json:"user"`
}

// Service handles authentication operations
type Service struct {
	Users      user.Repository
	Sessions   session.Service
	Audit      audit.Recorder
	KeyStore   *KeyStore
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a new auth service
func NewService(users user.Repository, sessions session.Service, rec audit.Recorder, keyStore *KeyStore, issuer string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		Users:      users,
		Sessions:   sessions,
		Audit:      rec,
		KeyStore:   keyStore,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) mintToken(typ, sub, sid, role string, ttl time.Duration) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		Subject(sub).
		Issuer(s.issuer).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("sid", sid).
		Claim("role", role).
		Claim("typ", typ).
		Build()
	if err != nil {
		return "", err
	}

	return s.KeyStore.Sign(token)
}

// ParseClaims verifies a token's signature and wraps its claims
func (s *Service) ParseClaims(raw string) (*Claims, error) {
	token, err := s.KeyStore.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Claims{Token: token}, nil
}

// Register creates a new account
func (s *Service) Register(req user.RegisterRequest) (*user.Response, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, ErrInvalidBody
	}

	if _, err := s.Users.FindByEmail(req.Email); err == nil {
		return nil, ErrInvalidBody
	}
	if _, err := s.Users.FindByUsername(req.Username); err == nil {
		return nil, ErrInvalidBody
	}

	hashed, err := user.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	newUser := &user.User{
		Username:    req.Username,
		Email:       req.Email,
		Password:    hashed,
		DisplayName: req.DisplayName,
		Role:        user.RoleUser,
		IsActive:    true,
	}

	if err := s.Users.Create(newUser); err != nil {
		return nil, err
	}

	s.Audit.Record(newUser.ID.String(), audit.ActionUserRegistered, "User", newUser.ID.String(), nil)

	return newUser.ToResponse(), nil
}

// Login authenticates credentials and opens a new session. Every call
// creates its own session row; concurrent device sessions are independent.
func (s *Service) Login(email, password, userAgent, ip string) (*LoginResponse, error) {
	u, err := s.Users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !u.IsActive || !user.VerifyPassword(password, u.Password) {
		return nil, ErrInvalidCredentials
	}

	sess := session.New(u.ID, userAgent, ip, s.refreshTTL)

	refresh, err := s.mintToken(TokenTypeRefresh, u.ID.String(), sess.ID.String(), u.Role, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	access, err := s.mintToken(TokenTypeAccess, u.ID.String(), sess.ID.String(), u.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}

	sess.RefreshHash = session.HashToken(refresh)
	if err := s.Sessions.Insert(sess); err != nil {
		return nil, err
	}

	s.Audit.Record(u.ID.String(), audit.ActionUserLoggedIn, "User", u.ID.String(), map[string]any{
		"session_id": sess.ID.String(),
		"ip":         ip,
		"user_agent": userAgent,
	})

	return &LoginResponse{
		TokenPair: TokenPair{AccessToken: access, RefreshToken: refresh},
		SessionID: sess.ID.String(),
		User:      u.ToResponse(),
	}, nil
}

// Refresh rotates the token pair for the session the refresh token is bound
// to. The stored refresh value is replaced by a conditional update, so of N
// concurrent calls with the same token exactly one succeeds and the rest
// observe session.ErrReplayDetected.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.ParseClaims(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType() != TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	if err := claims.Validate(s.issuer); err != nil {
		return nil, err
	}

	sid, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return nil, ErrInvalidToken
	}

	newRefresh, err := s.mintToken(TokenTypeRefresh, claims.Subject(), sid.String(), claims.Role(), s.refreshTTL)
	if err != nil {
		return nil, err
	}

	if err := s.Sessions.Rotate(sid, refreshToken, newRefresh, s.refreshTTL); err != nil {
		if errors.Is(err, session.ErrTokenMismatch) {
			return nil, session.ErrReplayDetected
		}
		return nil, err
	}

	access, err := s.mintToken(TokenTypeAccess, claims.Subject(), sid.String(), claims.Role(), s.accessTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes the session the refresh token is bound to. It is
// idempotent: an unknown, malformed, or already-revoked credential is a
// no-op success.
func (s *Service) Logout(refreshToken, userAgent, ip string) error {
	claims, err := s.ParseClaims(refreshToken)
	if err != nil {
		return nil
	}

	sid, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return nil
	}

	if err := s.Sessions.Revoke(sid); err != nil {
		return err
	}

	s.Audit.Record(claims.Subject(), audit.ActionUserLoggedOut, "User", claims.Subject(), map[string]any{
		"session_id": sid.String(),
		"ip":         ip,
		"user_agent": userAgent,
	})

	return nil
}
