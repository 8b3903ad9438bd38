package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/softdays/softdays/internal/logging"
	"github.com/softdays/softdays/internal/models"
	"github.com/softdays/softdays/internal/services/ai"
	"github.com/softdays/softdays/internal/vector"
)

const maxGenerationAttempts = 3

// ErrMalformedCandidate means the model response contained no usable
// quest JSON.
var ErrMalformedCandidate = errors.New("malformed quest candidate")

const (
	fallbackQuestTitle       = "Pause and breathe"
	fallbackQuestDescription = "Getting through today is enough. Tell yourself you are doing fine."
)

// fallbackCandidate is returned after all generation attempts fail. It
// carries no embedding, so it never participates in novelty checks.
func fallbackCandidate() models.QuestCandidate {
	return models.QuestCandidate{
		Title:       fallbackQuestTitle,
		Description: fallbackQuestDescription,
		Category:    models.CategoryMindfulness,
	}
}

// buildQuestPrompt formats the generation prompt. Pure, no I/O.
func buildQuestPrompt(date time.Time, recentTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s (%s).\n\n", date.Format("2006-01-02"), date.Weekday())

	if len(recentTitles) == 0 {
		b.WriteString("The user has no quests from the last 7 days. This is their first quest.\n\n")
	} else {
		b.WriteString("The user's quests from the last 7 days:\n")
		for _, title := range recentTitles {
			fmt.Fprintf(&b, "- %s\n", title)
		}
		b.WriteString("\nImportant: suggest an activity that differs from every quest above in category, setting, and mechanism.\n\n")
	}

	b.WriteString(`Suggest one simple activity that someone having a hard day can finish without pressure.

Principles:
1. Completable in 10-15 minutes
2. Doable at home or somewhere nearby
3. Warm, encouraging tone; not finishing is fine too
4. A concrete activity that gives a small sense of achievement
5. Use a specific, searchable activity name, ideally with a number or duration (for example "5-minute neck stretch" or "fold an origami crane"); avoid vague phrases like "take a short break"

Respond with JSON only, in exactly this shape:
{
  "title": "specific activity name (20 characters or fewer)",
  "description": "a warm, encouraging message (80 characters or fewer)",
  "category": "one of HEALTH, LEARNING, SOCIAL, CREATIVE, DAILY_LIFE, MINDFULNESS"
}
`)
	return b.String()
}

// parseCandidate extracts the JSON object from a model response that may
// wrap it in prose, then validates the decoded fields.
func parseCandidate(raw string) (models.QuestCandidate, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return models.QuestCandidate{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedCandidate)
	}

	var candidate models.QuestCandidate
	if err := json.Unmarshal([]byte(raw[start:end+1]), &candidate); err != nil {
		return models.QuestCandidate{}, fmt.Errorf("%w: %v", ErrMalformedCandidate, err)
	}

	candidate.Title = strings.TrimSpace(candidate.Title)
	candidate.Description = strings.TrimSpace(candidate.Description)
	if candidate.Title == "" || candidate.Description == "" {
		return models.QuestCandidate{}, fmt.Errorf("%w: missing title or description", ErrMalformedCandidate)
	}
	if !candidate.Category.Valid() {
		return models.QuestCandidate{}, fmt.Errorf("%w: unknown category %q", ErrMalformedCandidate, candidate.Category)
	}

	return candidate, nil
}

// generate runs the bounded attempt loop and always produces a
// candidate: a fresh one with its embedding on success, the fixed
// fallback with a nil embedding on exhaustion. The only error it
// returns is an embedding dimension mismatch, which indicates a
// misconfigured embedder rather than a transient failure.
func (s *QuestService) generate(ctx context.Context, userID uuid.UUID, date time.Time) (models.QuestCandidate, []float32, error) {
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		history, err := s.recentQuests(ctx, userID, date.AddDate(0, 0, -promptWindowDays), date.AddDate(0, 0, -1))
		if err != nil {
			logging.Warn("Quest history read failed", logging.Fields{
				"user_id": userID.String(),
				"attempt": attempt,
				"error":   err.Error(),
			})
			s.recordAttempt(userID, date, attempt, "retry", "history_unavailable", ai.Completion{})
			continue
		}

		titles := make([]string, 0, len(history))
		for _, quest := range history {
			titles = append(titles, quest.Title)
		}

		completion, err := s.generator.Generate(ctx, buildQuestPrompt(date, titles))
		if err != nil {
			logging.Warn("Quest generation failed", logging.Fields{
				"user_id": userID.String(),
				"attempt": attempt,
				"error":   err.Error(),
			})
			s.recordAttempt(userID, date, attempt, "retry", "generation_unavailable", completion)
			continue
		}

		candidate, err := parseCandidate(completion.Text)
		if err != nil {
			logging.Warn("Quest response unparseable", logging.Fields{
				"user_id": userID.String(),
				"attempt": attempt,
				"error":   err.Error(),
			})
			s.recordAttempt(userID, date, attempt, "retry", "malformed_candidate", completion)
			continue
		}

		embedding, err := s.embedder.Embed(ctx, candidate.Title)
		if err != nil {
			logging.Warn("Quest embedding failed", logging.Fields{
				"user_id": userID.String(),
				"attempt": attempt,
				"error":   err.Error(),
			})
			s.recordAttempt(userID, date, attempt, "retry", "embedding_unavailable", completion)
			continue
		}

		duplicate, err := s.isDuplicate(ctx, userID, date, embedding)
		if err != nil {
			if errors.Is(err, vector.ErrDimensionMismatch) {
				return models.QuestCandidate{}, nil, err
			}
			reason := "novelty_check_failed"
			if errors.Is(err, ai.ErrEmbeddingUnavailable) {
				reason = "embedding_unavailable"
			}
			logging.Warn("Quest novelty check failed", logging.Fields{
				"user_id": userID.String(),
				"attempt": attempt,
				"error":   err.Error(),
			})
			s.recordAttempt(userID, date, attempt, "retry", reason, completion)
			continue
		}
		if duplicate {
			logging.Info("Duplicate quest discarded", logging.Fields{
				"user_id": userID.String(),
				"attempt": attempt,
				"title":   candidate.Title,
			})
			s.recordAttempt(userID, date, attempt, "retry", "duplicate", completion)
			continue
		}

		s.recordAttempt(userID, date, attempt, "accepted", "", completion)
		return candidate, embedding, nil
	}

	logging.Warn("Quest generation exhausted, using fallback", logging.Fields{
		"user_id": userID.String(),
		"date":    date.Format("2006-01-02"),
	})
	s.recordAttempt(userID, date, maxGenerationAttempts, "fallback", "attempts_exhausted", ai.Completion{})
	return fallbackCandidate(), nil, nil
}

// recordAttempt writes one audit row per generation attempt. Best
// effort with its own short deadline so audit failures never affect the
// request.
func (s *QuestService) recordAttempt(userID uuid.UUID, date time.Time, attempt int, status, reason string, completion ai.Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.db.Exec(ctx, `
        INSERT INTO quest_generation_logs (user_id, quest_date, attempt, status, reason, model, tokens_input, tokens_output, duration_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, userID, date, attempt, status, reason, completion.Model, completion.TokensInput, completion.TokensOutput, completion.Duration.Milliseconds())

	if err != nil {
		logging.Error("Failed to record generation attempt", logging.Fields{
			"user_id": userID.String(),
			"attempt": attempt,
			"error":   err.Error(),
		})
	}
}
