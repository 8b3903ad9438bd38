package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestCategory is the fixed set of activity categories a quest can belong to.
type QuestCategory string

const (
	CategoryHealth      QuestCategory = "HEALTH"
	CategoryLearning    QuestCategory = "LEARNING"
	CategorySocial      QuestCategory = "SOCIAL"
	CategoryCreative    QuestCategory = "CREATIVE"
	CategoryDailyLife   QuestCategory = "DAILY_LIFE"
	CategoryMindfulness QuestCategory = "MINDFULNESS"
)

var QuestCategories = []QuestCategory{
	CategoryHealth,
	CategoryLearning,
	CategorySocial,
	CategoryCreative,
	CategoryDailyLife,
	CategoryMindfulness,
}

func (c QuestCategory) Valid() bool {
	for _, known := range QuestCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Quest is one micro-activity recommendation for a (user, date) pair.
// Rows are immutable after insert except TitleEmbedding (lazily backfilled)
// and VideoURL.
type Quest struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Category       QuestCategory `json:"category"`
	QuestDate      time.Time     `json:"quest_date"`
	TitleEmbedding []float32     `json:"-"`
	VideoURL       *string       `json:"video_url,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type QuestStatus string

const (
	QuestStatusPending   QuestStatus = "PENDING"
	QuestStatusCompleted QuestStatus = "COMPLETED"
)

// UserQuest tracks a user's completion state for a quest.
type UserQuest struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	QuestID     uuid.UUID   `json:"quest_id"`
	Status      QuestStatus `json:"status"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// QuestCandidate is an unpersisted generation result awaiting parse and
// novelty checks. Promoted to a Quest only on acceptance.
type QuestCandidate struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    QuestCategory `json:"category"`
}

// QuestView is the API shape for a quest together with its assignment state.
type QuestView struct {
	QuestID     uuid.UUID     `json:"quest_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    QuestCategory `json:"category"`
	QuestDate   string        `json:"quest_date"`
	VideoURL    *string       `json:"video_url,omitempty"`
	Status      QuestStatus   `json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

func NewQuestView(quest *Quest, assignment *UserQuest) *QuestView {
	return &QuestView{
		QuestID:     quest.ID,
		Title:       quest.Title,
		Description: quest.Description,
		Category:    quest.Category,
		QuestDate:   quest.QuestDate.Format("2006-01-02"),
		VideoURL:    quest.VideoURL,
		Status:      assignment.Status,
		CompletedAt: assignment.CompletedAt,
	}
}
