package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/softdays/softdays/internal/logging"
	"github.com/softdays/softdays/internal/models"
	"github.com/softdays/softdays/internal/vector"
)

const (
	// noveltyThreshold is the cosine similarity above which two quest
	// titles are considered the same activity.
	noveltyThreshold = 0.85

	// promptWindowDays feeds recent titles into the prompt; the wider
	// noveltyWindowDays catches thematic repeats further back.
	promptWindowDays  = 7
	noveltyWindowDays = 30
)

// recentQuests returns the user's quests with quest_date in [from, to]
// inclusive, ascending by date.
func (s *QuestService) recentQuests(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Quest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, title, description, category, quest_date, title_embedding, video_url, created_at
		 FROM quests
		 WHERE user_id = $1 AND quest_date BETWEEN $2 AND $3
		 ORDER BY quest_date ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("getting recent quests: %w", err)
	}
	defer rows.Close()

	var quests []*models.Quest
	for rows.Next() {
		quest := &models.Quest{}
		if err := rows.Scan(&quest.ID, &quest.UserID, &quest.Title, &quest.Description, &quest.Category,
			&quest.QuestDate, &quest.TitleEmbedding, &quest.VideoURL, &quest.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning quest: %w", err)
		}
		quests = append(quests, quest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading recent quests: %w", err)
	}

	return quests, nil
}

// isDuplicate compares the candidate embedding against the user's
// 30-day history. Historical rows without a stored embedding are
// embedded on the fly and written back so the next check is cheaper;
// the write-back is best effort and concurrent duplicates of it are
// harmless.
func (s *QuestService) isDuplicate(ctx context.Context, userID uuid.UUID, date time.Time, candidateEmbedding []float32) (bool, error) {
	history, err := s.recentQuests(ctx, userID, date.AddDate(0, 0, -noveltyWindowDays), date.AddDate(0, 0, -1))
	if err != nil {
		return false, err
	}
	if len(history) == 0 {
		// First quest in the window is never a duplicate
		return false, nil
	}

	for _, quest := range history {
		embedding := quest.TitleEmbedding
		if len(embedding) == 0 {
			embedding, err = s.embedder.Embed(ctx, quest.Title)
			if err != nil {
				return false, fmt.Errorf("backfilling embedding for quest %s: %w", quest.ID, err)
			}
			if _, err := s.db.Exec(ctx,
				`UPDATE quests SET title_embedding = $1 WHERE id = $2`,
				embedding, quest.ID,
			); err != nil {
				logging.Warn("Embedding write-back failed", logging.Fields{
					"quest_id": quest.ID.String(),
					"error":    err.Error(),
				})
			}
		}

		similarity, err := vector.Cosine(candidateEmbedding, embedding)
		if err != nil {
			return false, fmt.Errorf("comparing against quest %s: %w", quest.ID, err)
		}
		if similarity > noveltyThreshold {
			logging.Info("Similar quest found", logging.Fields{
				"quest_id":   quest.ID.String(),
				"similarity": similarity,
			})
			return true, nil
		}
	}

	return false, nil
}
