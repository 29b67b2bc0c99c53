package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chemtrainer/trainer/internal/model"
	"github.com/chemtrainer/trainer/internal/sampler"
	"github.com/chemtrainer/trainer/internal/store"
	"github.com/chemtrainer/trainer/internal/training"
)

func (h *Handler) adminRoutes(r chi.Router) {
	r.Get("/questions", h.handleListQuestions)
	r.Post("/questions", h.handleCreateQuestion)
	r.Put("/questions/{questionID}", h.handleUpdateQuestion)
	r.Delete("/questions/{questionID}", h.handleDeactivateQuestion)

	r.Get("/topics", h.handleAdminTopics)
	r.Post("/topics", h.handleCreateTopic)
	r.Put("/topics/{topicID}", h.handleUpdateTopic)
	r.Delete("/topics/{topicID}", h.handleDeactivateTopic)

	r.Get("/assigned", h.handleListAssigned)
	r.Post("/assigned", h.handleCreateAssigned)
	r.Delete("/assigned/{assignedID}", h.handleDeleteAssigned)

	r.Get("/mark-table", h.handleGetMarkTable)
	r.Put("/mark-table", h.handleReplaceMarkTable)

	r.Post("/bank", h.handleUploadBank)

	r.Get("/learners", h.handleListLearners)
	r.Get("/learners/{learnerID}/stats", h.handleLearnerStats)
	r.Get("/works/{workID}", h.handleWorkView)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q model.Question
	if !decodeJSON(w, r, &q) {
		return
	}
	q.Active = true
	if q.Level == 0 {
		q.Level = 1
	}
	if err := q.Validate(); err != nil {
		writeError(w, r, errors.Join(training.ErrInvalidRequest, err))
		return
	}
	id, err := h.store.InsertQuestion(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q.ID = id
	slog.Info("question created", "id", id, "kind", q.Kind)
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "questionID")
	if !ok {
		return
	}
	var q model.Question
	if !decodeJSON(w, r, &q) {
		return
	}
	q.ID = id
	if err := q.Validate(); err != nil {
		writeError(w, r, errors.Join(training.ErrInvalidRequest, err))
		return
	}
	if err := h.store.UpdateQuestion(q); err != nil {
		writeError(w, r, fmt.Errorf("update question %d: %w", id, err))
		return
	}
	updated, err := h.store.GetQuestion(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeactivateQuestion hides a question from new works. Works that already
// hold it keep their slots.
func (h *Handler) handleDeactivateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "questionID")
	if !ok {
		return
	}
	if err := h.store.SetQuestionActive(id, false); err != nil {
		writeError(w, r, fmt.Errorf("deactivate question %d: %w", id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type topicView struct {
	model.Topic
	TagCounts map[string]int `json:"tag_counts"`
}

// handleAdminTopics lists every topic with the number of active questions per tag.
func (h *Handler) handleAdminTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.store.ListTopics(false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pool, err := h.store.ActiveQuestions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	counts := sampler.CountByTag(pool)

	views := make([]topicView, 0, len(topics))
	for _, t := range topics {
		v := topicView{Topic: t, TagCounts: make(map[string]int, len(t.Tags))}
		for _, tag := range t.Tags {
			v.TagCounts[tag] = counts[tag]
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func validTopic(t model.Topic) error {
	if t.Name == "" || len(t.Tags) == 0 {
		return fmt.Errorf("topic name and tags are required: %w", training.ErrInvalidRequest)
	}
	return nil
}

func (h *Handler) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var t model.Topic
	if !decodeJSON(w, r, &t) {
		return
	}
	if err := validTopic(t); err != nil {
		writeError(w, r, err)
		return
	}
	t.Active = true
	id, err := h.store.InsertTopic(t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t.ID = id
	slog.Info("topic created", "id", id, "name", t.Name)
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "topicID")
	if !ok {
		return
	}
	var t model.Topic
	if !decodeJSON(w, r, &t) {
		return
	}
	t.ID = id
	if err := validTopic(t); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.UpdateTopic(t); err != nil {
		writeError(w, r, fmt.Errorf("update topic %d: %w", id, err))
		return
	}
	updated, err := h.store.GetTopic(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeactivateTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "topicID")
	if !ok {
		return
	}
	if err := h.store.SetTopicActive(id, false); err != nil {
		writeError(w, r, fmt.Errorf("deactivate topic %d: %w", id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAssigned(w http.ResponseWriter, r *http.Request) {
	works, err := h.store.ListAssignedWorks()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if works == nil {
		works = []model.AssignedWork{}
	}
	writeJSON(w, http.StatusOK, works)
}

func (h *Handler) handleCreateAssigned(w http.ResponseWriter, r *http.Request) {
	var req training.AssignedWorkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	aw, err := h.svc.CreateAssignedWork(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, aw)
}

func (h *Handler) handleDeleteAssigned(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "assignedID")
	if !ok {
		return
	}
	if err := h.store.DeleteAssignedWork(id); err != nil {
		writeError(w, r, fmt.Errorf("delete assigned work %d: %w", id, err))
		return
	}
	slog.Info("assigned work deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMarkTable(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.MarkTable()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.MarkConversionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleReplaceMarkTable(w http.ResponseWriter, r *http.Request) {
	var entries []model.MarkConversionEntry
	if !decodeJSON(w, r, &entries) {
		return
	}
	if err := h.store.ReplaceMarkTable(entries); err != nil {
		writeError(w, r, fmt.Errorf("replace mark table: %w", err))
		return
	}
	slog.Info("mark table replaced", "entries", len(entries))
	writeJSON(w, http.StatusOK, entries)
}

type uploadResponse struct {
	Duplicate bool              `json:"duplicate"`
	Imported  store.ImportStats `json:"imported"`
}

// handleUploadBank imports a bank file sent as multipart field "bank_file".
// A file whose content was already imported under the same name is skipped.
func (h *Handler) handleUploadBank(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, errors.Join(errBadRequest, err))
		return
	}
	file, header, err := r.FormFile("bank_file")
	if err != nil {
		writeError(w, r, errors.Join(errBadRequest, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	storedHash, err := h.store.GetImportedFileHash(header.Filename)
	if err != nil {
		writeError(w, r, fmt.Errorf("check import status: %w", err))
		return
	}
	if storedHash == hash {
		writeJSON(w, http.StatusOK, uploadResponse{Duplicate: true})
		return
	}

	var bank model.BankImport
	if err := json.Unmarshal(data, &bank); err != nil {
		writeError(w, r, errors.Join(errBadRequest, err))
		return
	}
	stats, err := h.store.ImportBank(bank)
	if err != nil {
		writeError(w, r, errors.Join(training.ErrInvalidRequest, err))
		return
	}
	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("uploaded bank via admin", "filename", header.Filename,
		"questions", stats.Questions, "topics", stats.Topics, "mark_table", stats.MarkTable)
	writeJSON(w, http.StatusCreated, uploadResponse{Imported: stats})
}

func (h *Handler) handleListLearners(w http.ResponseWriter, r *http.Request) {
	learners, err := h.store.ListLearners()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if learners == nil {
		learners = []model.Learner{}
	}
	writeJSON(w, http.StatusOK, learners)
}

func (h *Handler) handleLearnerStats(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "learnerID")
	if !ok {
		return
	}
	learner, err := h.store.GetLearner(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if learner == nil {
		writeError(w, r, fmt.Errorf("learner %d: %w", id, training.ErrNotFound))
		return
	}
	stats, err := h.svc.LearnerStats(learner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"learner": learner, "works": stats})
}

func (h *Handler) handleWorkView(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "workID")
	if !ok {
		return
	}
	view, err := h.svc.WorkView(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
