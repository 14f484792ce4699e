package session

import (
	"context"
	"crypto/sha3"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nethira/chatcore/internal/cache"
)

var (
	// ErrInvalidSession is returned when the session is missing or revoked
	ErrInvalidSession = errors.New("invalid session")
	// ErrExpiredSession is returned when the session has expired
	ErrExpiredSession = errors.New("session expired")
	// ErrTokenMismatch is returned when the presented refresh token does not
	// match the stored lineage value (a superseded token was replayed)
	ErrTokenMismatch = errors.New("refresh token mismatch")
	// ErrReplayDetected is returned when a rotation loses the conditional
	// write race
	ErrReplayDetected = errors.New("replay detected")
)

// Service interface for session operations
type Service interface {
	Insert(sess *Session) error
	Get(id uuid.UUID) (*Session, error)
	Validate(id uuid.UUID, refreshToken string) (*Session, error)
	Rotate(id uuid.UUID, oldToken, newToken string, ttl time.Duration) error
	Revoke(id uuid.UUID) error
	ListForUser(userID uuid.UUID) ([]Session, error)
}

type service struct {
	repo            Repository
	revocationCache *cache.RevocationCache
}

// NewService creates a session Service without a revocation cache.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// NewServiceWithCache creates a Service that also publishes revocations to
// the cache. A nil cache degrades to database-only behavior.
func NewServiceWithCache(repo Repository, revocationCache *cache.RevocationCache) Service {
	return &service{repo: repo, revocationCache: revocationCache}
}

// HashToken hashes a refresh token with SHA3-256 for storage. The row keeps
// the hash, never the signed token itself.
func HashToken(token string) string {
	h := sha3.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(h[:])
}

func (s *service) Insert(sess *Session) error {
	return s.repo.Create(sess)
}

func (s *service) Get(id uuid.UUID) (*Session, error) {
	sess, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return sess, nil
}

// Validate checks the session state and the presented refresh token without
// mutating anything beyond the last-used timestamp.
func (s *service) Validate(id uuid.UUID, refreshToken string) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if !sess.IsValid || sess.RevokedAt != nil {
		return nil, ErrInvalidSession
	}

	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, ErrExpiredSession
	}

	if HashToken(refreshToken) != sess.RefreshHash {
		return nil, ErrTokenMismatch
	}

	if err := s.repo.UpdateLastUsed(id, time.Now().UTC()); err != nil {
		return nil, err
	}

	return sess, nil
}

// Rotate swaps the stored refresh hash for the new token's hash as one
// conditional update. A loser of a concurrent rotation race gets
// ErrReplayDetected, never partially rotated state.
func (s *service) Rotate(id uuid.UUID, oldToken, newToken string, ttl time.Duration) error {
	if _, err := s.Validate(id, oldToken); err != nil {
		return err
	}

	ok, err := s.repo.UpdateRefresh(id, HashToken(oldToken), HashToken(newToken), time.Now().UTC().Add(ttl))
	if err != nil {
		return err
	}
	if !ok {
		return ErrReplayDetected
	}

	return nil
}

// Revoke marks the session invalid. Revoking an already-revoked or unknown
// session is a no-op success so logout stays idempotent.
func (s *service) Revoke(id uuid.UUID) error {
	sess, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if sess.RevokedAt == nil {
		if err := s.repo.Revoke(id, time.Now().UTC()); err != nil {
			return err
		}
	}

	if s.revocationCache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ttl := time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Hour
		}
		if err := s.revocationCache.RevokeSession(ctx, id.String(), ttl); err != nil {
			slog.Warn("Failed to publish session revocation", "error", err, "session_id", id.String())
		}
	}

	return nil
}

func (s *service) ListForUser(userID uuid.UUID) ([]Session, error) {
	return s.repo.FindByUserID(userID)
}
