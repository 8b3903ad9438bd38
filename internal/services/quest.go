package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"github.com/softdays/softdays/internal/logging"
	"github.com/softdays/softdays/internal/models"
)

const (
	prewarmTimeout  = 2 * time.Minute
	prewarmGuardTTL = 10 * time.Minute
)

var (
	ErrQuestNotFound      = errors.New("quest not found")
	ErrAssignmentNotFound = errors.New("quest assignment not found")
)

// QuestService owns the daily quest lifecycle: generation with novelty
// enforcement, idempotent per-day persistence, assignment, and
// completion. The unique constraint on (user_id, quest_date) is the
// cross-process serialization point; the singleflight group only
// collapses concurrent in-process callers so one request pays for
// generation.
type QuestService struct {
	db        DB
	kv        KV
	generator TextGenerator
	embedder  Embedder
	videos    VideoSearcher
	group     singleflight.Group
}

func NewQuestService(db DB, kv KV, generator TextGenerator, embedder Embedder, videos VideoSearcher) *QuestService {
	return &QuestService{
		db:        db,
		kv:        kv,
		generator: generator,
		embedder:  embedder,
		videos:    videos,
	}
}

// GetTodayQuest returns the user's quest for the date, generating and
// persisting one on first call. It always returns a quest; generation
// failures degrade to the fallback content rather than an error.
func (s *QuestService) GetTodayQuest(ctx context.Context, userID uuid.UUID, date time.Time) (*models.QuestView, error) {
	quest, err := s.getOrCreate(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	assignment, err := s.ensureAssignment(ctx, userID, quest.ID)
	if err != nil {
		return nil, err
	}

	return models.NewQuestView(quest, assignment), nil
}

// PrepareAsync generates the user's quest in the background so a later
// GetTodayQuest call finds it already persisted. Fire and forget.
func (s *QuestService) PrepareAsync(userID uuid.UUID, date time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), prewarmTimeout)
		defer cancel()
		s.prewarm(ctx, userID, date)
	}()
}

func (s *QuestService) prewarm(ctx context.Context, userID uuid.UUID, date time.Time) {
	// The guard key keeps a burst of prepare calls from racing into
	// generation. It is best effort; the unique constraint is what
	// actually guarantees one row.
	guardKey := fmt.Sprintf("questwarm:%s:%s", userID, date.Format("2006-01-02"))
	acquired, err := s.kv.SetNX(ctx, guardKey, "1", prewarmGuardTTL)
	if err != nil {
		logging.Warn("Prewarm guard unavailable", logging.Fields{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
	} else if !acquired {
		return
	}

	// Re-check existence right before generating so a completed sync
	// request skips the provider calls entirely.
	var exists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM quests WHERE user_id = $1 AND quest_date = $2)`,
		userID, date,
	).Scan(&exists)
	if err == nil && exists {
		return
	}

	quest, err := s.getOrCreate(ctx, userID, date)
	if err != nil {
		logging.Error("Quest pre-generation failed", logging.Fields{
			"user_id": userID.String(),
			"date":    date.Format("2006-01-02"),
			"error":   err.Error(),
		})
		return
	}

	if _, err := s.ensureAssignment(ctx, userID, quest.ID); err != nil {
		logging.Error("Quest pre-assignment failed", logging.Fields{
			"user_id":  userID.String(),
			"quest_id": quest.ID.String(),
			"error":    err.Error(),
		})
		return
	}

	logging.Info("Quest pre-generated", logging.Fields{
		"user_id": userID.String(),
		"date":    date.Format("2006-01-02"),
	})
}

// Complete transitions the assignment PENDING to COMPLETED, setting the
// completion timestamp once. Completing an already completed assignment
// is a no-op that preserves the original timestamp.
func (s *QuestService) Complete(ctx context.Context, userID, questID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE user_quests
		 SET status = 'COMPLETED', completed_at = now()
		 WHERE user_id = $1 AND quest_id = $2 AND status = 'PENDING'`,
		userID, questID,
	)
	if err != nil {
		return fmt.Errorf("completing quest: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No row updated: either already completed or never assigned
	var status models.QuestStatus
	err = s.db.QueryRow(ctx,
		`SELECT status FROM user_quests WHERE user_id = $1 AND quest_id = $2`,
		userID, questID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		var questExists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM quests WHERE id = $1 AND user_id = $2)`,
			questID, userID,
		).Scan(&questExists); err != nil {
			return fmt.Errorf("checking quest existence: %w", err)
		}
		if !questExists {
			return ErrQuestNotFound
		}
		return ErrAssignmentNotFound
	}
	if err != nil {
		return fmt.Errorf("checking assignment status: %w", err)
	}

	return nil
}

// getOrCreate is the idempotent creator: read, generate if absent, then
// insert under the unique constraint and defer to the winner on
// conflict. A freshly generated candidate that loses the race is
// discarded, never exposed.
func (s *QuestService) getOrCreate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Quest, error) {
	key := userID.String() + "|" + date.Format("2006-01-02")
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.getOrCreateQuest(ctx, userID, date)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Quest), nil
}

func (s *QuestService) getOrCreateQuest(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Quest, error) {
	quest, err := s.questByDate(ctx, userID, date)
	if err == nil {
		return quest, nil
	}
	if !errors.Is(err, ErrQuestNotFound) {
		return nil, err
	}

	candidate, embedding, err := s.generate(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	// Video enrichment is optional and skipped for the fallback quest,
	// whose constant title makes a lookup pointless.
	var videoURL *string
	if embedding != nil && s.videos != nil {
		url, err := s.videos.Search(ctx, candidate.Title)
		if err != nil {
			logging.Warn("Video search failed", logging.Fields{
				"user_id": userID.String(),
				"title":   candidate.Title,
				"error":   err.Error(),
			})
		} else if url != "" {
			videoURL = &url
		}
	}

	quest = &models.Quest{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO quests (user_id, title, description, category, quest_date, title_embedding, video_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, quest_date) DO NOTHING
		 RETURNING id, user_id, title, description, category, quest_date, title_embedding, video_url, created_at`,
		userID, candidate.Title, candidate.Description, candidate.Category, date, embedding, videoURL,
	).Scan(&quest.ID, &quest.UserID, &quest.Title, &quest.Description, &quest.Category,
		&quest.QuestDate, &quest.TitleEmbedding, &quest.VideoURL, &quest.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent caller won the insert; their row is the quest
		return s.questByDate(ctx, userID, date)
	}
	if err != nil {
		return nil, fmt.Errorf("creating quest: %w", err)
	}

	return quest, nil
}

func (s *QuestService) questByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.Quest, error) {
	quest := &models.Quest{}
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, title, description, category, quest_date, title_embedding, video_url, created_at
		 FROM quests WHERE user_id = $1 AND quest_date = $2`,
		userID, date,
	).Scan(&quest.ID, &quest.UserID, &quest.Title, &quest.Description, &quest.Category,
		&quest.QuestDate, &quest.TitleEmbedding, &quest.VideoURL, &quest.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting quest by date: %w", err)
	}

	return quest, nil
}

// ensureAssignment get-or-creates the user_quests row with the same
// insert-then-reread pattern as quest creation.
func (s *QuestService) ensureAssignment(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	assignment := &models.UserQuest{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO user_quests (user_id, quest_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, quest_id) DO NOTHING
		 RETURNING id, user_id, quest_id, status, completed_at, created_at`,
		userID, questID,
	).Scan(&assignment.ID, &assignment.UserID, &assignment.QuestID,
		&assignment.Status, &assignment.CompletedAt, &assignment.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return s.assignmentByQuest(ctx, userID, questID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating assignment: %w", err)
	}

	return assignment, nil
}

func (s *QuestService) assignmentByQuest(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	assignment := &models.UserQuest{}
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, quest_id, status, completed_at, created_at
		 FROM user_quests WHERE user_id = $1 AND quest_id = $2`,
		userID, questID,
	).Scan(&assignment.ID, &assignment.UserID, &assignment.QuestID,
		&assignment.Status, &assignment.CompletedAt, &assignment.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting assignment: %w", err)
	}

	return assignment, nil
}
