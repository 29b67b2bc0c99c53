// Package handler exposes the trainer as a JSON API over chi.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chemtrainer/trainer/internal/grading"
	appI18n "github.com/chemtrainer/trainer/internal/i18n"
	"github.com/chemtrainer/trainer/internal/model"
	"github.com/chemtrainer/trainer/internal/sampler"
	"github.com/chemtrainer/trainer/internal/store"
	"github.com/chemtrainer/trainer/internal/training"
	"github.com/chemtrainer/trainer/internal/workflow"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
	svc   *training.Service
}

// New creates a new Handler.
func New(s *store.Store, svc *training.Service) *Handler {
	return &Handler{store: s, svc: svc}
}

// Routes registers all HTTP routes under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/topics", h.handleListTopics)
		r.Get("/results/{token}", h.handleResult)

		r.Group(func(r chi.Router) {
			r.Use(h.requireLearner)
			r.Post("/works", h.handleStartWork)
			r.Get("/works/current", h.handleResume)
			r.Delete("/works/current", h.handleDiscard)
			r.Post("/works/{workID}/next", h.handleNext)
			r.Post("/works/{workID}/slots/{slotID}/answer", h.handleAnswer)
			r.Post("/works/{workID}/slots/{slotID}/skip", h.handleSkip)
			r.Get("/works/{workID}/skipped", h.handlePendingSkipped)
			r.Post("/works/{workID}/skipped", h.handleResolveSkipped)
			r.Post("/works/{workID}/finish", h.handleFinish)
			r.Get("/me/stats", h.handleMyStats)
		})

		r.Route("/admin", h.adminRoutes)
	})
}

type stepResponse struct {
	*training.Step
	Progress string `json:"progress,omitempty"`
	Notice   string `json:"notice,omitempty"`
}

func (h *Handler) writeStep(w http.ResponseWriter, r *http.Request, status int, step *training.Step) {
	resp := stepResponse{Step: step}
	ctx := r.Context()
	switch {
	case step.Prompt != nil:
		resp.Progress = appI18n.Td(ctx, "QuestionProgress", map[string]any{
			"Position": step.Prompt.Position,
			"Total":    step.Prompt.Total,
		})
		if step.Prompt.SelfCheck {
			resp.Notice = appI18n.Td(ctx, "SelfCheckPrompt", map[string]any{"FullMark": step.Prompt.FullMark})
		}
	case step.PendingSkipped > 0:
		resp.Notice = appI18n.Tp(ctx, "SkippedLeft", step.PendingSkipped, nil)
	default:
		resp.Notice = appI18n.T(ctx, "AllAnswered")
	}
	writeJSON(w, status, resp)
}

type startRequest struct {
	Mode    model.WorkMode `json:"mode"`
	TopicID int64          `json:"topic_id,omitempty"`
	Slug    string         `json:"slug,omitempty"`
}

func (h *Handler) handleStartWork(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())

	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		step *training.Step
		err  error
	)
	switch req.Mode {
	case model.ModeExam:
		step, err = h.svc.StartExam(learner.ID)
	case model.ModeTopic:
		step, err = h.svc.StartTopic(learner.ID, req.TopicID)
	case model.ModeAssigned:
		step, err = h.svc.StartAssigned(learner.ID, req.Slug)
	default:
		err = training.ErrInvalidRequest
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeStep(w, r, http.StatusCreated, step)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	step, err := h.svc.Resume(learner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeStep(w, r, http.StatusOK, step)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	if err := h.svc.Discard(learner.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "WorkDiscarded")})
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	workID, ok := idParam(w, r, "workID")
	if !ok {
		return
	}
	step, err := h.svc.Next(learner.ID, workID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeStep(w, r, http.StatusOK, step)
}

type answerRequest struct {
	Answer string `json:"answer"`
	Mark   *int   `json:"mark,omitempty"`
}

type answerResponse struct {
	*training.AnswerResult
	Message string `json:"message"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	workID, ok := idParam(w, r, "workID")
	if !ok {
		return
	}
	slotID, ok := idParam(w, r, "slotID")
	if !ok {
		return
	}
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Answer(learner.ID, workID, slotID, req.Answer, req.Mark)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := map[string]any{"Mark": res.Mark, "FullMark": res.FullMark, "Answer": res.Answer}
	msgID := "AnswerZero"
	switch {
	case res.Mark >= res.FullMark:
		msgID = "AnswerFull"
	case res.Mark > 0:
		msgID = "AnswerPartial"
	}
	writeJSON(w, http.StatusOK, answerResponse{AnswerResult: res, Message: appI18n.Td(r.Context(), msgID, data)})
}

// handleSkip puts the slot aside and presents the next question.
func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	workID, ok := idParam(w, r, "workID")
	if !ok {
		return
	}
	slotID, ok := idParam(w, r, "slotID")
	if !ok {
		return
	}
	if err := h.svc.Skip(learner.ID, workID, slotID); err != nil {
		writeError(w, r, err)
		return
	}
	step, err := h.svc.Next(learner.ID, workID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeStep(w, r, http.StatusOK, step)
}

func (h *Handler) handlePendingSkipped(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	workID, ok := idParam(w, r, "workID")
	if !ok {
		return
	}
	pending, err := h.svc.PendingSkipped(learner.ID, workID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if pending == nil {
		pending = []model.WorkQuestion{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) handleResolveSkipped(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	workID, ok := idParam(w, r, "workID")
	if !ok {
		return
	}
	var req struct {
		Retry bool `json:"retry"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	step, err := h.svc.ResolveSkipped(learner.ID, workID, req.Retry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeStep(w, r, http.StatusOK, step)
}

type finishResponse struct {
	*model.Summary
	Message string `json:"message"`
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	workID, ok := idParam(w, r, "workID")
	if !ok {
		return
	}
	sum, err := h.svc.Finish(r.Context(), learner.ID, workID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var msg string
	if sum.ScaledTotal != nil {
		msg = appI18n.Td(r.Context(), "WorkFinishedScaled", map[string]any{
			"Raw": sum.RawTotal, "Scaled": *sum.ScaledTotal, "ScaledMax": grading.ScaledMax,
		})
	} else {
		msg = appI18n.Td(r.Context(), "WorkFinished", map[string]any{"Raw": sum.RawTotal, "Max": sum.MaxTotal})
	}
	writeJSON(w, http.StatusOK, finishResponse{Summary: sum, Message: msg})
}

func (h *Handler) handleMyStats(w http.ResponseWriter, r *http.Request) {
	learner := model.LearnerFromContext(r.Context())
	stats, err := h.svc.LearnerStats(learner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Result(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.store.ListTopics(true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if topics == nil {
		topics = []model.Topic{}
	}
	writeJSON(w, http.StatusOK, topics)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errBadRequest = errors.New("bad request")

// writeError maps service errors to a status code and a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status, msgID := http.StatusInternalServerError, "ErrInternal"
	var data map[string]any

	var short *training.ShortfallError
	switch {
	case errors.As(err, &short):
		status = http.StatusUnprocessableEntity
		msgID, data = shortfallMessage(short.Result)
	case errors.Is(err, training.ErrNotFound), errors.Is(err, store.ErrNotFound):
		status, msgID = http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, training.ErrOpenWorkExists):
		status, msgID = http.StatusConflict, "ErrOpenWorkExists"
	case errors.Is(err, training.ErrWorkClosed):
		status, msgID = http.StatusConflict, "ErrWorkClosed"
	case errors.Is(err, training.ErrUnresolvedSlots):
		status, msgID = http.StatusConflict, "ErrUnresolvedSlots"
	case errors.Is(err, workflow.ErrInvalidTransition):
		status, msgID = http.StatusConflict, "ErrInvalidTransition"
	case errors.Is(err, training.ErrInvalidMark):
		status, msgID = http.StatusBadRequest, "ErrInvalidMark"
	case errors.Is(err, training.ErrInvalidRequest), errors.Is(err, errBadRequest):
		status, msgID = http.StatusBadRequest, "ErrInvalidRequest"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Message: appI18n.Td(ctx, msgID, data)})
}

func shortfallMessage(res sampler.Result) (string, map[string]any) {
	data := map[string]any{"Tag": res.Tag, "Requested": res.Requested, "Available": res.Available}
	switch res.Reason {
	case sampler.ReasonTooFewTags:
		return "ShortfallTooFewTags", data
	case sampler.ReasonInvalidQuota:
		return "ShortfallInvalidQuota", data
	case sampler.ReasonCycleLimit:
		return "ShortfallCycleLimit", data
	}
	if res.Tag != "" {
		return "ShortfallTag", data
	}
	return "ShortfallPool", data
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, errors.Join(errBadRequest, err))
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, r, errors.Join(errBadRequest, err))
		return 0, false
	}
	return id, true
}
