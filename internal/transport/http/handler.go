package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"maquiz-service/internal/app"
	"maquiz-service/internal/domain"
	"maquiz-service/internal/infra/memory"
)

// Handler exposes the trainer engine as a JSON API. Authentication lives in
// front of this service; identity arrives as headers.
type Handler struct {
	service *app.Service
	rounds  *memory.RoundStore
}

func NewHandler(service *app.Service, rounds *memory.RoundStore) *Handler {
	return &Handler{service: service, rounds: rounds}
}

// NewRouter wires the API, health check, and the websocket leaderboard stream.
func NewRouter(h *Handler, ws *WSHandler) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/rounds", h.createRound)
		r.Post("/rounds/{roundID}/answers", h.answer)
		r.Post("/rounds/{roundID}/evaluate", h.evaluate)
		r.Get("/stats/me", h.myStats)
		r.Delete("/stats/me", h.resetMine)
		r.Get("/stats/leaderboard", h.leaderboard)
		r.Get("/stats/hardest", h.hardest)
		r.Get("/stats/categories", h.categories)
		r.Delete("/stats/users/{userID}", h.resetUser)
		r.Delete("/stats", h.resetAll)
	})
	r.Get("/ws/leaderboard", ws.ServeWS)
	return r
}

// publicQuestion is a question as shipped to the client: no correct index.
type publicQuestion struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Category string   `json:"category,omitempty"`
}

type createRoundRequest struct {
	Count    int    `json:"count"`
	Category string `json:"category"`
}

type createRoundResponse struct {
	RoundID   string           `json:"roundId"`
	Questions []publicQuestion `json:"questions"`
}

type answerRequest struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

type evaluateResponse struct {
	Score   int                    `json:"score"`
	Total   int                    `json:"total"`
	Percent int                    `json:"percent"`
	Saved   bool                   `json:"saved"`
	Details []domain.AttemptDetail `json:"details"`
}

type myStatsResponse struct {
	Summary    domain.UserSummary        `json:"summary"`
	Categories []domain.CategoryAccuracy `json:"categories"`
	Attempts   []domain.Attempt          `json:"attempts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) createRound(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := identity(w, r); !ok {
		return
	}
	var req createRoundRequest
	if r.Body != nil {
		// an empty body means defaults
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	round, err := h.service.NewRound(r.Context(), req.Count, req.Category)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.rounds.Put(round)

	questions := make([]publicQuestion, 0, len(round.Questions))
	for _, q := range round.Questions {
		questions = append(questions, publicQuestion{
			ID:       q.ID,
			Text:     q.Text,
			Options:  q.Options,
			Category: q.Category,
		})
	}
	writeJSON(w, http.StatusCreated, createRoundResponse{RoundID: round.ID, Questions: questions})
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := identity(w, r); !ok {
		return
	}
	round, ok := h.rounds.Get(chi.URLParam(r, "roundID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrRoundNotFound.Error()})
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid answer payload"})
		return
	}
	if err := round.Answer(req.QuestionID, req.OptionIndex); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	userID, userLabel, ok := identity(w, r)
	if !ok {
		return
	}
	round, found := h.rounds.Get(chi.URLParam(r, "roundID"))
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrRoundNotFound.Error()})
		return
	}

	attempt, err := h.service.Record(r.Context(), round, userID, userLabel)
	saved := err == nil
	if err != nil {
		if errors.Is(err, domain.ErrRoundIncomplete) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		var pe *domain.PersistenceError
		if !errors.As(err, &pe) {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		// Best-effort durability: the result still goes out.
		log.Printf("recording attempt for %s failed: %v", userLabel, err)
	}

	writeJSON(w, http.StatusOK, evaluateResponse{
		Score:   attempt.Score,
		Total:   attempt.Total,
		Percent: app.Percent(attempt.Score, attempt.Total),
		Saved:   saved,
		Details: attempt.Details,
	})
}

func (h *Handler) myStats(w http.ResponseWriter, r *http.Request) {
	userID, userLabel, ok := identity(w, r)
	if !ok {
		return
	}
	summary, err := h.service.UserSummary(r.Context(), userID, userLabel)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	categories, err := h.service.UserCategoryAccuracy(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	attempts, err := h.service.UserAttempts(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, myStatsResponse{Summary: summary, Categories: categories, Attempts: attempts})
}

func (h *Handler) resetMine(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.service.ResetUser(r.Context(), userID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) hardest(w http.ResponseWriter, r *http.Request) {
	limit := -1 // service default
	if r.URL.Query().Get("all") == "1" {
		limit = 0
	} else if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	list, err := h.service.HardestQuestions(r.Context(), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.CategoryAccuracy(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// resetUser is the admin variant of resetMine: clear one specific user's
// history. Email-only users are addressed by their email (their id).
func (h *Handler) resetUser(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-User-Role") != "admin" {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin role required"})
		return
	}
	target := chi.URLParam(r, "userID")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing user id"})
		return
	}
	if err := h.service.ResetUser(r.Context(), target); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resetAll(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-User-Role") != "admin" {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin role required"})
		return
	}
	if err := h.service.ResetAll(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// identity pulls the caller's id and label from headers. The label is the
// aggregation key; either header stands in for a missing counterpart, so an
// email-only caller is keyed by their email and never shares a bucket with
// other email-only callers.
func identity(w http.ResponseWriter, r *http.Request) (userID, userLabel string, ok bool) {
	userID = r.Header.Get("X-User-Id")
	userLabel = r.Header.Get("X-User-Email")
	if userLabel == "" {
		userLabel = userID
	}
	if userID == "" {
		userID = userLabel
	}
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing X-User-Id or X-User-Email"})
		return "", "", false
	}
	return userID, userLabel, true
}

func writeEngineError(w http.ResponseWriter, err error) {
	var unavailable *domain.SourceUnavailableError
	var persistence *domain.PersistenceError
	switch {
	case errors.Is(err, domain.ErrEmptyPool):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.As(err, &persistence):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
