package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	appI18n "github.com/chemtrainer/trainer/internal/i18n"
	"github.com/chemtrainer/trainer/internal/model"
)

const (
	learnerIDHeader   = "X-Learner-ID"
	learnerNameHeader = "X-Learner-Name"
)

// requireLearner identifies the learner by the external chat id the front end
// forwards, registering unknown ids on first sight.
func (h *Handler) requireLearner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		externalID := strings.TrimSpace(r.Header.Get(learnerIDHeader))
		if externalID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error:   "missing " + learnerIDHeader,
				Message: appI18n.T(r.Context(), "ErrLearnerRequired"),
			})
			return
		}

		learner, err := h.store.EnsureLearner(externalID, strings.TrimSpace(r.Header.Get(learnerNameHeader)))
		if err != nil {
			writeError(w, r, fmt.Errorf("ensure learner: %w", err))
			return
		}
		slog.Debug("learner identified", "learner_id", learner.ID, "external_id", externalID)

		ctx := model.ContextWithLearner(r.Context(), learner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
