// Package handler is the HTTP API: sittings, the marking gateway, results,
// classes, assignments and accounts.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/pavelanni/gcsemock/internal/draft"
	appI18n "github.com/pavelanni/gcsemock/internal/i18n"
	"github.com/pavelanni/gcsemock/internal/llm"
	"github.com/pavelanni/gcsemock/internal/model"
	"github.com/pavelanni/gcsemock/internal/results"
	"github.com/pavelanni/gcsemock/internal/session"
	"github.com/pavelanni/gcsemock/internal/storage"
	"github.com/pavelanni/gcsemock/internal/store"
)

const maxBodyBytes = 2 << 20

// Gateway is the marking and generation service.
type Gateway interface {
	session.Gateway
	GenerateExam(ctx context.Context, req llm.GenerateExamRequest) (*model.ExamPaper, error)
	AnalyzeText(ctx context.Context, text string) (*llm.TextAnalysis, error)
	EvaluateWriting(ctx context.Context, text, targetMethod string) (*llm.WritingEvaluation, error)
	GeneratePracticeSet(ctx context.Context, req llm.PracticeSetRequest) (*llm.PracticeSet, error)
	MarkAssignment(ctx context.Context, a model.Assignment, answers []model.AssignmentAnswer) (*model.AssignmentResult, error)
}

// PDFRenderer renders a result report on demand.
type PDFRenderer interface {
	Render(paper model.ExamPaper, r model.ExamResult) ([]byte, error)
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Store     *store.Store
	Gateway   Gateway
	Sessions  *session.Manager
	Persister *results.Persister
	PDF       PDFRenderer
	// Files serves locally stored uploads under /files/ when set.
	Files  http.Handler
	Config model.ExamConfig
	Logger *slog.Logger
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	gateway   Gateway
	sessions  *session.Manager
	persister *results.Persister
	pdf       PDFRenderer
	files     http.Handler
	config    model.ExamConfig
	validate  *validator.Validate
	limiter   *rate.Limiter
	logger    *slog.Logger
	ready     func(ctx context.Context) error
}

// New creates a new Handler.
func New(d Deps) (*Handler, error) {
	if d.Store == nil || d.Gateway == nil || d.Sessions == nil {
		return nil, errors.New("handler: store, gateway and sessions are required")
	}
	if d.Config.JWTSecret == "" {
		return nil, errors.New("handler: jwt secret is required")
	}
	if d.Config.TokenTTL <= 0 {
		d.Config.TokenTTL = 24 * time.Hour
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &Handler{
		store:     d.Store,
		gateway:   d.Gateway,
		sessions:  d.Sessions,
		persister: d.Persister,
		pdf:       d.PDF,
		files:     d.Files,
		config:    d.Config,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    d.Logger.With("component", "http"),
		ready:     d.Store.Ping,
	}
	if d.Config.AIRateLimit > 0 {
		burst := d.Config.AIBurst
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(d.Config.AIRateLimit), burst)
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if h.files != nil {
		r.Handle(storage.LocalPrefix+"*", http.StripPrefix(storage.LocalPrefix, h.files))
	}

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/results/{id}", h.handleResultPage)
		r.Get("/results/{id}/pdf", h.handleResultPDF)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.optionalAuth, h.rateLimit)
			r.Post("/generate-exam", h.handleGenerateExam)
			r.Post("/mark-exam", h.handleMarkExam)
			r.Post("/model-answers", h.handleModelAnswers)
			r.Post("/analyze-text", h.handleAnalyzeText)
			r.Post("/evaluate-writing", h.handleEvaluateWriting)
			r.Post("/generate-practice-set", h.handleGeneratePracticeSet)
			r.Post("/mark-assignment", h.handleMarkAssignment)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/auth/logout", h.handleLogout)
			r.Get("/auth/me", h.handleMe)

			r.Get("/papers", h.handleListPapers)
			r.Get("/papers/{id}", h.handleGetPaper)

			r.Post("/sessions", h.handleStartSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetSession)
				r.Put("/answers/{qid}", h.handleSetAnswer)
				r.Put("/answers/{qid}/image", h.handleSelectImage)
				r.Post("/answers/{qid}/flag", h.handleToggleFlag)
				r.Post("/optional/{qid}", h.handleSelectOptional)
				r.Post("/navigate", h.handleNavigate)
				r.With(h.rateLimit).Post("/submit", h.handleSubmit)
				r.Post("/discard", h.handleDiscard)
			})

			r.Get("/results", h.handleListResults)
			r.Get("/results/{id}", h.handleGetResult)
			r.Post("/results/{id}/pdf", h.handleRetryPDF)

			r.Get("/classes", h.handleListClasses)
			r.Post("/classes/join", h.handleJoinClass)
			r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).Post("/classes", h.handleCreateClass)
			r.Route("/classes/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetClass)
				r.Group(func(r chi.Router) {
					r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
					r.Put("/", h.handleRenameClass)
					r.Delete("/", h.handleDeleteClass)
					r.Get("/members", h.handleListMembers)
					r.Post("/members", h.handleAddMember)
					r.Delete("/members/{userID}", h.handleRemoveMember)
				})
			})

			r.Get("/assignments", h.handleListAssignments)
			r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).Post("/assignments", h.handleCreateAssignment)
			r.Route("/assignments/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetAssignment)
				r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).Delete("/", h.handleDeleteAssignment)
				r.With(h.rateLimit).Post("/submit", h.handleSubmitAssignment)
				r.Get("/results", h.handleAssignmentResults)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/users", h.handleListUsers)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{id}/toggle", h.handleToggleUserActive)
				r.Post("/papers", h.handleUploadPapers)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.ready(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "live_sessions": h.sessions.Len()})
}

// rateLimit guards calls that reach the marking service.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			h.writeError(w, r, errTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiError is an error with a fixed HTTP status and catalogue message.
type apiError struct {
	status int
	code   string
	msgID  string
	data   map[string]any
}

func (e *apiError) Error() string {
	if detail, ok := e.data["Detail"]; ok {
		return fmt.Sprintf("%s: %v", e.code, detail)
	}
	return e.code
}

var (
	errNotFound           = &apiError{status: http.StatusNotFound, code: "not_found", msgID: "ErrNotFound"}
	errForbidden          = &apiError{status: http.StatusForbidden, code: "forbidden", msgID: "ErrForbidden"}
	errLoginRequired      = &apiError{status: http.StatusUnauthorized, code: "unauthorized", msgID: "ErrLoginRequired"}
	errInvalidCredentials = &apiError{status: http.StatusUnauthorized, code: "invalid_credentials", msgID: "ErrInvalidCredentials"}
	errTooManyRequests    = &apiError{status: http.StatusTooManyRequests, code: "rate_limited", msgID: "ErrTooManyRequests"}
)

func badRequest(detail string) *apiError {
	return &apiError{
		status: http.StatusBadRequest,
		code:   "bad_request",
		msgID:  "ErrBadRequest",
		data:   map[string]any{"Detail": detail},
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps err onto a status code and a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status, code, msg := http.StatusInternalServerError, "internal", ""

	var apiErr *apiError
	var gwErr *llm.GatewayError
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &apiErr):
		status, code = apiErr.status, apiErr.code
		msg = appI18n.Td(ctx, apiErr.msgID, apiErr.data)
	case errors.As(err, &gwErr):
		status, code = gwErr.HTTPStatus(), gwErr.Code
		msg = appI18n.GatewayMessage(ctx, gwErr.Code)
	case errors.As(err, &verr):
		status, code = http.StatusBadRequest, "bad_request"
		msg = appI18n.Td(ctx, "ErrBadRequest", map[string]any{"Detail": verr.Error()})
	case errors.Is(err, session.ErrNoPaper),
		errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, session.ErrNotOptional),
		errors.Is(err, draft.ErrUnknownQuestion):
		status, code = http.StatusBadRequest, "bad_request"
		msg = appI18n.Td(ctx, "ErrBadRequest", map[string]any{"Detail": err.Error()})
	case errors.Is(err, session.ErrSubmissionInFlight):
		status, code = http.StatusConflict, "submission_in_flight"
		msg = appI18n.Td(ctx, "ErrSessionState", map[string]any{"State": session.StateSubmitting})
	case errors.Is(err, session.ErrTimeExpired):
		status, code = http.StatusConflict, "time_expired"
		msg = appI18n.T(ctx, "ErrTimeExpired")
	case errors.Is(err, session.ErrNotAnswering):
		status, code = http.StatusConflict, "not_answering"
		msg = appI18n.Td(ctx, "ErrSessionState", map[string]any{"State": "closed"})
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
		msg = appI18n.T(ctx, "ErrNotFound")
	case errors.Is(err, session.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
		msg = appI18n.T(ctx, "ErrForbidden")
	default:
		msg = appI18n.T(ctx, "ErrInternal")
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// decode reads a JSON body into v and validates it.
func (h *Handler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest(err.Error())
	}
	return h.validate.Struct(v)
}

func int64Param(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}
