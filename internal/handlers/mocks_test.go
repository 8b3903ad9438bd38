package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/softdays/softdays/internal/models"
)

type mockUserService struct {
	CreateFunc     func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, nil
}

type mockAuthService struct {
	HashPasswordFunc    func(password string) (string, error)
	VerifyPasswordFunc  func(hash, password string) bool
	CreateSessionFunc   func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc func(ctx context.Context, token string) (*models.User, error)
	DeleteSessionFunc   func(ctx context.Context, token string) error
}

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockAuthService) VerifyPassword(hash, password string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(hash, password)
	}
	return hash == "hashed_"+password
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "session_token_value", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

type mockQuestService struct {
	GetTodayQuestFunc func(ctx context.Context, userID uuid.UUID, date time.Time) (*models.QuestView, error)
	PrepareAsyncFunc  func(userID uuid.UUID, date time.Time)
	CompleteFunc      func(ctx context.Context, userID, questID uuid.UUID) error
}

func (m *mockQuestService) GetTodayQuest(ctx context.Context, userID uuid.UUID, date time.Time) (*models.QuestView, error) {
	if m.GetTodayQuestFunc != nil {
		return m.GetTodayQuestFunc(ctx, userID, date)
	}
	return nil, nil
}

func (m *mockQuestService) PrepareAsync(userID uuid.UUID, date time.Time) {
	if m.PrepareAsyncFunc != nil {
		m.PrepareAsyncFunc(userID, date)
	}
}

func (m *mockQuestService) Complete(ctx context.Context, userID, questID uuid.UUID) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, userID, questID)
	}
	return nil
}
