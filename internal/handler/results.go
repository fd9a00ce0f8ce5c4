package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/gcsemock/internal/model"
	"github.com/pavelanni/gcsemock/internal/views"
)

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	list, err := h.store.ListExamResults(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.ExamResult{}
	}
	writeJSON(w, http.StatusOK, list)
}

// loadResult returns a result the caller may see: their own, any result for
// an admin, or a result of a student in one of a teacher's classes.
func (h *Handler) loadResult(ctx context.Context, id string) (*model.ExamResult, error) {
	res, err := h.store.GetExamResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errNotFound
	}
	user := model.UserFromContext(ctx)
	switch {
	case user.ID == res.UserID, user.Role == model.UserRoleAdmin:
		return res, nil
	case user.Role == model.UserRoleTeacher:
		ok, err := h.store.TeacherHasStudent(ctx, user.ID, res.UserID)
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}
	return nil, errNotFound
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	paper, err := h.store.GetPaper(r.Context(), res.PaperID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ResultPage(paper, *res).Render(r.Context(), w); err != nil {
		h.logger.Error("render error", "error", err)
	}
}

// handleResultPDF redirects to the stored PDF, rendering one on the fly when
// the upload chain never completed.
func (h *Handler) handleResultPDF(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.PDFURL != "" {
		http.Redirect(w, r, res.PDFURL, http.StatusFound)
		return
	}
	if h.pdf == nil {
		h.writeError(w, r, errNotFound)
		return
	}
	paper, err := h.store.GetPaper(r.Context(), res.PaperID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if paper == nil {
		paper = &model.ExamPaper{ID: res.PaperID, Type: res.PaperType}
	}
	data, err := h.pdf.Render(*paper, *res)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="result-`+res.ID+`.pdf"`)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write pdf", "result_id", res.ID, "error", err)
	}
}

// handleRetryPDF reruns the render, upload and link steps for a saved result.
func (h *Handler) handleRetryPDF(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.persister == nil {
		h.writeError(w, r, errNotFound)
		return
	}
	paper, err := h.store.GetPaper(r.Context(), res.PaperID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if paper == nil {
		paper = &model.ExamPaper{ID: res.PaperID, Type: res.PaperType}
	}
	out := h.persister.AttachPDF(r.Context(), *paper, *res)
	status := http.StatusOK
	if len(out.Failures) > 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}
