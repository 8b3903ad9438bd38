package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/softdays/softdays/internal/services"
)

type QuestHandler struct {
	questService services.QuestServiceInterface
}

func NewQuestHandler(questService services.QuestServiceInterface) *QuestHandler {
	return &QuestHandler{questService: questService}
}

// Today returns the authenticated user's quest for the current date,
// generating it on first request.
func (h *QuestHandler) Today(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	view, err := h.questService.GetTodayQuest(r.Context(), user.ID, questDate(time.Now()))
	if err != nil {
		log.Printf("Error getting today's quest: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Prepare kicks off background generation of today's quest and returns
// immediately.
func (h *QuestHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	h.questService.PrepareAsync(user.ID, questDate(time.Now()))
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Quest preparation started"})
}

// Complete marks the quest in the path as completed for the
// authenticated user.
func (h *QuestHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	questID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quest ID")
		return
	}

	err = h.questService.Complete(r.Context(), user.ID, questID)
	if errors.Is(err, services.ErrQuestNotFound) {
		writeError(w, http.StatusNotFound, "Quest not found")
		return
	}
	if errors.Is(err, services.ErrAssignmentNotFound) {
		writeError(w, http.StatusNotFound, "Quest not assigned to user")
		return
	}
	if err != nil {
		log.Printf("Error completing quest: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// questDate truncates to the UTC calendar date, the quest uniqueness key.
func questDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
