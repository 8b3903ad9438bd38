package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/softdays/softdays/internal/models"
	"github.com/softdays/softdays/internal/services/ai"
	"github.com/softdays/softdays/internal/vector"
)

// attemptRecorder collects quest_generation_logs inserts issued by the
// controller so tests can assert per-attempt reasons.
type attemptRecorder struct {
	mu      sync.Mutex
	reasons []string
	status  []string
}

func (r *attemptRecorder) execFunc() func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
		if strings.Contains(sql, "quest_generation_logs") {
			r.mu.Lock()
			r.status = append(r.status, args[3].(string))
			r.reasons = append(r.reasons, args[4].(string))
			r.mu.Unlock()
		}
		return fakeCommandTag{rowsAffected: 1}, nil
	}
}

func emptyHistoryDB(recorder *attemptRecorder) *fakeDB {
	return &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return rowsFromValues(), nil
		},
		ExecFunc: recorder.execFunc(),
	}
}

func TestBuildQuestPrompt_FirstQuest(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	prompt := buildQuestPrompt(date, nil)

	if !strings.Contains(prompt, "2026-03-02") {
		t.Error("prompt must contain the date")
	}
	if !strings.Contains(prompt, "Monday") {
		t.Error("prompt must contain the weekday")
	}
	if !strings.Contains(prompt, "first quest") {
		t.Error("prompt must note the empty history")
	}
	for _, category := range models.QuestCategories {
		if !strings.Contains(prompt, string(category)) {
			t.Errorf("prompt must enumerate category %s", category)
		}
	}
}

func TestBuildQuestPrompt_WithHistory(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	prompt := buildQuestPrompt(date, []string{"5-minute neck stretch", "Fold an origami crane"})

	if !strings.Contains(prompt, "- 5-minute neck stretch") {
		t.Error("prompt must list recent titles")
	}
	if !strings.Contains(prompt, "- Fold an origami crane") {
		t.Error("prompt must list every recent title")
	}
	if !strings.Contains(prompt, "differs from every quest above") {
		t.Error("prompt must instruct differing from recent quests")
	}
}

func TestParseCandidate_PlainJSON(t *testing.T) {
	candidate, err := parseCandidate(`{"title":"5-minute stretch","description":"Loosen up gently.","category":"HEALTH"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title != "5-minute stretch" {
		t.Errorf("unexpected title: %s", candidate.Title)
	}
	if candidate.Category != models.CategoryHealth {
		t.Errorf("unexpected category: %s", candidate.Category)
	}
}

func TestParseCandidate_ProseWrapped(t *testing.T) {
	raw := "Sure! Here is a gentle activity for today:\n\n" +
		`{"title":"Water a plant","description":"A small moment of care.","category":"DAILY_LIFE"}` +
		"\n\nHave a calm day!"

	candidate, err := parseCandidate(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title != "Water a plant" {
		t.Errorf("unexpected title: %s", candidate.Title)
	}
}

func TestParseCandidate_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no JSON", "I cannot produce JSON today."},
		{"undecodable", "{not json at all}"},
		{"empty title", `{"title":"","description":"x","category":"HEALTH"}`},
		{"empty description", `{"title":"x","description":"","category":"HEALTH"}`},
		{"unknown category", `{"title":"x","description":"y","category":"EXERCISE"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseCandidate(tc.raw)
			if !errors.Is(err, ErrMalformedCandidate) {
				t.Fatalf("expected ErrMalformedCandidate, got %v", err)
			}
		})
	}
}

func TestGenerate_AcceptsFirstUniqueCandidate(t *testing.T) {
	recorder := &attemptRecorder{}
	generator := &fakeGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (ai.Completion, error) {
			return ai.Completion{
				Text:  `{"title":"Water a plant","description":"A small moment of care.","category":"DAILY_LIFE"}`,
				Model: "gpt-4o-mini",
			}, nil
		},
	}
	embedder := &fakeEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}

	service := NewQuestService(emptyHistoryDB(recorder), newFakeKV(), generator, embedder, &fakeVideoSearcher{})
	candidate, embedding, err := service.generate(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title != "Water a plant" {
		t.Errorf("unexpected title: %s", candidate.Title)
	}
	if len(embedding) != 3 {
		t.Errorf("expected candidate embedding, got %v", embedding)
	}
	if len(recorder.status) != 1 || recorder.status[0] != "accepted" {
		t.Errorf("expected one accepted attempt, got %v", recorder.status)
	}
}

func TestGenerate_RetriesMalformedThenAccepts(t *testing.T) {
	recorder := &attemptRecorder{}
	call := 0
	generator := &fakeGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (ai.Completion, error) {
			call++
			if call == 1 {
				return ai.Completion{Text: "I would rather chat about the weather."}, nil
			}
			return ai.Completion{
				Text: `{"title":"Sketch a mug","description":"Ten relaxed minutes of drawing.","category":"CREATIVE"}`,
			}, nil
		},
	}
	embedder := &fakeEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0, 1, 0}, nil
		},
	}

	service := NewQuestService(emptyHistoryDB(recorder), newFakeKV(), generator, embedder, &fakeVideoSearcher{})
	candidate, _, err := service.generate(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title != "Sketch a mug" {
		t.Errorf("unexpected title: %s", candidate.Title)
	}
	if len(recorder.reasons) != 2 || recorder.reasons[0] != "malformed_candidate" || recorder.reasons[1] != "" {
		t.Errorf("unexpected attempt reasons: %v", recorder.reasons)
	}
}

func TestGenerate_ExhaustionReturnsFallback(t *testing.T) {
	recorder := &attemptRecorder{}
	generator := &fakeGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (ai.Completion, error) {
			return ai.Completion{}, ai.ErrGenerationUnavailable
		},
	}
	embedder := &fakeEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			t.Fatal("embedder must not be called when generation fails")
			return nil, nil
		},
	}

	service := NewQuestService(emptyHistoryDB(recorder), newFakeKV(), generator, embedder, &fakeVideoSearcher{})
	candidate, embedding, err := service.generate(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("exhaustion must not surface an error, got %v", err)
	}
	if candidate.Title != fallbackQuestTitle {
		t.Errorf("expected fallback title %q, got %q", fallbackQuestTitle, candidate.Title)
	}
	if candidate.Category != models.CategoryMindfulness {
		t.Errorf("expected MINDFULNESS fallback, got %s", candidate.Category)
	}
	if embedding != nil {
		t.Error("fallback candidate must carry no embedding")
	}

	wantReasons := []string{"generation_unavailable", "generation_unavailable", "generation_unavailable", "attempts_exhausted"}
	if len(recorder.reasons) != len(wantReasons) {
		t.Fatalf("expected %d recorded attempts, got %v", len(wantReasons), recorder.reasons)
	}
	for i, want := range wantReasons {
		if recorder.reasons[i] != want {
			t.Errorf("attempt %d: expected reason %q, got %q", i+1, want, recorder.reasons[i])
		}
	}
}

func TestGenerate_DuplicateThenUnique(t *testing.T) {
	recorder := &attemptRecorder{}
	questID := uuid.New()
	userID := uuid.New()
	now := time.Now()
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return rowsFromValues([]any{
				questID, userID, "Take a short walk", "Step outside for a bit.", models.CategoryHealth,
				now.AddDate(0, 0, -3), []float32{1, 0, 0}, nil, now,
			}), nil
		},
		ExecFunc: recorder.execFunc(),
	}

	call := 0
	generator := &fakeGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (ai.Completion, error) {
			call++
			if call == 1 {
				return ai.Completion{Text: `{"title":"Go for a stroll","description":"Move a little.","category":"HEALTH"}`}, nil
			}
			return ai.Completion{Text: `{"title":"Water a plant","description":"A small moment of care.","category":"DAILY_LIFE"}`}, nil
		},
	}
	embedder := &fakeEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			if text == "Go for a stroll" {
				// cosine 0.92 against the stored walk quest
				return []float32{0.92, 0.3919, 0}, nil
			}
			// cosine 0.40 against the stored walk quest
			return []float32{0.40, 0.9165, 0}, nil
		},
	}

	service := NewQuestService(db, newFakeKV(), generator, embedder, &fakeVideoSearcher{})
	candidate, _, err := service.generate(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Title != "Water a plant" {
		t.Errorf("expected the novel candidate to win, got %q", candidate.Title)
	}
	if len(recorder.reasons) != 2 || recorder.reasons[0] != "duplicate" {
		t.Errorf("unexpected attempt reasons: %v", recorder.reasons)
	}
}

func TestGenerate_DimensionMismatchAborts(t *testing.T) {
	recorder := &attemptRecorder{}
	questID := uuid.New()
	userID := uuid.New()
	now := time.Now()
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return rowsFromValues([]any{
				questID, userID, "Take a short walk", "Step outside for a bit.", models.CategoryHealth,
				now.AddDate(0, 0, -3), []float32{1, 0}, nil, now,
			}), nil
		},
		ExecFunc: recorder.execFunc(),
	}

	generator := &fakeGenerator{
		GenerateFunc: func(ctx context.Context, prompt string) (ai.Completion, error) {
			return ai.Completion{Text: `{"title":"Water a plant","description":"A small moment of care.","category":"DAILY_LIFE"}`}, nil
		},
	}
	embedder := &fakeEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}

	service := NewQuestService(db, newFakeKV(), generator, embedder, &fakeVideoSearcher{})
	_, _, err := service.generate(context.Background(), userID, now)
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch to surface, got %v", err)
	}
}
