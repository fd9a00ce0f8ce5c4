package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/gcsemock/internal/model"
	"github.com/pavelanni/gcsemock/internal/session"
)

type startSessionRequest struct {
	PaperID string `json:"paper_id"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.PaperID == "" {
		h.writeError(w, r, session.ErrNoPaper)
		return
	}
	paper, err := h.store.GetPaper(r.Context(), req.PaperID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if paper == nil {
		h.writeError(w, r, errNotFound)
		return
	}

	user := model.UserFromContext(r.Context())
	c, err := h.sessions.Start(r.Context(), *paper, user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{View: c.View(), Paper: paper})
}

type sessionResponse struct {
	session.View
	Paper *model.ExamPaper `json:"paper,omitempty"`
}

// controller returns the caller's live sitting named in the URL.
func (h *Handler) controller(r *http.Request) (*session.Controller, error) {
	user := model.UserFromContext(r.Context())
	return h.sessions.Get(chi.URLParam(r, "id"), user.ID)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if errors.Is(err, session.ErrSessionNotFound) {
		user := model.UserFromContext(r.Context())
		done, cerr := h.sessions.Completion(chi.URLParam(r, "id"), user.ID)
		if cerr != nil {
			h.writeError(w, r, cerr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": session.StateFinished, "completion": done})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	paper := c.Paper()
	writeJSON(w, http.StatusOK, sessionResponse{View: c.View(), Paper: &paper})
}

type answerRequest struct {
	Text string `json:"text" validate:"max=60000"`
}

func (h *Handler) handleSetAnswer(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req answerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.SetAnswerText(r.Context(), chi.URLParam(r, "qid"), req.Text); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

type imageRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

func (h *Handler) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req imageRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.SetSelectedImage(chi.URLParam(r, "qid"), *req.Index); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

func (h *Handler) handleToggleFlag(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	flagged, err := c.ToggleFlag(r.Context(), chi.URLParam(r, "qid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"flagged": flagged})
}

func (h *Handler) handleSelectOptional(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := c.SelectOptionalSibling(r.Context(), chi.URLParam(r, "qid")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

type navigateRequest struct {
	Action string `json:"action" validate:"required,oneof=next previous jump"`
	Index  int    `json:"index"`
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req navigateRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	switch req.Action {
	case "next":
		c.Next()
	case "previous":
		c.Previous()
	case "jump":
		if err := c.JumpTo(req.Index); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, c.View())
}

type submitResponse struct {
	session.Completion
	Warnings []string `json:"warnings,omitempty"`
	ViewURL  string   `json:"view_url,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	c, err := h.controller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	done, err := c.Submit(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := submitResponse{Completion: *done}
	for _, f := range done.Outcome.Failures {
		resp.Warnings = append(resp.Warnings, f.Error())
	}
	if done.Result.ID != "" {
		resp.ViewURL = h.config.PublicURL + "/results/" + done.Result.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.sessions.Discard(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
