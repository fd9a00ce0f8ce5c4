package handler

import (
	"context"
	"net/http"

	"github.com/pavelanni/gcsemock/internal/llm"
	"github.com/pavelanni/gcsemock/internal/model"
)

func (h *Handler) handleGenerateExam(w http.ResponseWriter, r *http.Request) {
	var req llm.GenerateExamRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	paper, err := h.gateway.GenerateExam(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// Generated papers are kept so a sitting can be started on them.
	if err := h.store.SavePaper(r.Context(), *paper); err != nil {
		h.logger.Error("failed to store generated paper", "paper_id", paper.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, paper)
}

// paperRef names a stored paper or carries one inline.
type paperRef struct {
	PaperID string           `json:"paper_id" validate:"required_without=Paper"`
	Paper   *model.ExamPaper `json:"paper,omitempty"`
}

func (h *Handler) resolvePaper(ctx context.Context, ref paperRef) (*model.ExamPaper, error) {
	if ref.Paper != nil {
		if len(ref.Paper.Questions) == 0 {
			return nil, badRequest("paper has no questions")
		}
		return ref.Paper, nil
	}
	paper, err := h.store.GetPaper(ctx, ref.PaperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, errNotFound
	}
	return paper, nil
}

type markExamRequest struct {
	paperRef
	Answers []model.StudentAnswer `json:"answers"`
}

func (h *Handler) handleMarkExam(w http.ResponseWriter, r *http.Request) {
	var req markExamRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	paper, err := h.resolvePaper(r.Context(), req.paperRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.gateway.MarkExam(r.Context(), *paper, req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleModelAnswers(w http.ResponseWriter, r *http.Request) {
	var req paperRef
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	paper, err := h.resolvePaper(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	text, err := h.gateway.GenerateModelAnswers(r.Context(), *paper)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type analyzeRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

func (h *Handler) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.gateway.AnalyzeText(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type evaluateRequest struct {
	Text         string `json:"text" validate:"required,max=20000"`
	TargetMethod string `json:"target_method" validate:"max=200"`
}

func (h *Handler) handleEvaluateWriting(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.gateway.EvaluateWriting(r.Context(), req.Text, req.TargetMethod)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGeneratePracticeSet(w http.ResponseWriter, r *http.Request) {
	var req llm.PracticeSetRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	set, err := h.gateway.GeneratePracticeSet(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// markAssignmentRequest names a stored assignment, or carries its questions
// inline for callers without one.
type markAssignmentRequest struct {
	AssignmentID   int64                      `json:"assignment_id" validate:"required_without=Questions"`
	StudentAnswers []model.AssignmentAnswer   `json:"student_answers" validate:"dive"`
	Title          string                     `json:"title"`
	Questions      []model.AssignmentQuestion `json:"questions" validate:"omitempty,dive"`
}

func (h *Handler) handleMarkAssignment(w http.ResponseWriter, r *http.Request) {
	var req markAssignmentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	a := model.Assignment{Title: req.Title, Questions: req.Questions}
	if req.AssignmentID != 0 {
		user := model.UserFromContext(r.Context())
		if user == nil {
			h.writeError(w, r, errLoginRequired)
			return
		}
		stored, _, err := h.assignmentFor(r.Context(), req.AssignmentID, user)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		a = *stored
	}
	if len(a.Questions) == 0 {
		h.writeError(w, r, badRequest("assignment has no questions"))
		return
	}
	res, err := h.gateway.MarkAssignment(r.Context(), a, req.StudentAnswers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
