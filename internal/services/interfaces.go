package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/softdays/softdays/internal/models"
	"github.com/softdays/softdays/internal/services/ai"
)

// TextGenerator produces free-form model output for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (ai.Completion, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// VideoSearcher finds a short instructional video for a query. An empty
// URL with a nil error means no result was found.
type VideoSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type QuestServiceInterface interface {
	// GetTodayQuest returns the user's quest for the given date, creating
	// quest and assignment on first call.
	GetTodayQuest(ctx context.Context, userID uuid.UUID, date time.Time) (*models.QuestView, error)
	// PrepareAsync kicks off quest creation in the background so a later
	// GetTodayQuest hits a warm row.
	PrepareAsync(userID uuid.UUID, date time.Time)
	// Complete marks the user's assignment for the quest as completed.
	// Completing an already-completed assignment is a no-op.
	Complete(ctx context.Context, userID, questID uuid.UUID) error
}

type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash, password string) bool
	CreateSession(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
}
