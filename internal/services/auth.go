package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/softdays/softdays/internal/models"
)

const (
	bcryptCost       = 12
	SessionDuration  = 30 * 24 * time.Hour // 30 days
	sessionKeyPrefix = "session:"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

type AuthService struct {
	db DB
	kv KV
}

func NewAuthService(db DB, kv KV) *AuthService {
	return &AuthService{
		db: db,
		kv: kv,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (s *AuthService) GenerateSessionToken() (token string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	token = hex.EncodeToString(bytes)
	hashBytes := sha256.Sum256([]byte(token))
	hash = hex.EncodeToString(hashBytes[:])

	return token, hash, nil
}

func (s *AuthService) hashToken(token string) string {
	hashBytes := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hashBytes[:])
}

func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (token string, err error) {
	token, tokenHash, err := s.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(SessionDuration)

	// The database row is authoritative. The cache write is best effort
	// so a Redis outage never blocks login.
	_, err = s.db.Exec(ctx,
		`INSERT INTO sessions (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt,
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	s.kv.Set(ctx, sessionKeyPrefix+tokenHash, userID.String(), SessionDuration)

	return token, nil
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	tokenHash := s.hashToken(token)

	// Try the cache first
	cacheKey := sessionKeyPrefix + tokenHash
	userIDStr, err := s.kv.Get(ctx, cacheKey)
	if err == nil {
		s.kv.Expire(ctx, cacheKey, SessionDuration)

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			return nil, fmt.Errorf("parsing user id: %w", err)
		}

		return s.getUserByID(ctx, userID)
	}

	// Fall back to PostgreSQL
	var session models.Session
	err = s.db.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.ExpiresAt, &session.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		// Clean up expired session
		s.db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", session.ID)
		return nil, ErrSessionExpired
	}

	// Repopulate the cache for subsequent requests
	s.kv.Set(ctx, cacheKey, session.UserID.String(), time.Until(session.ExpiresAt))

	return s.getUserByID(ctx, session.UserID)
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	tokenHash := s.hashToken(token)

	s.kv.Del(ctx, sessionKeyPrefix+tokenHash)

	_, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE token_hash = $1", tokenHash)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

func (s *AuthService) getUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return user, nil
}
