package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/gcsemock/internal/model"
)

func (h *Handler) handleListPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := h.store.ListPapers(r.Context(), model.PaperType(r.URL.Query().Get("type")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if papers == nil {
		papers = []model.ExamPaper{}
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *Handler) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	paper, err := h.store.GetPaper(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if paper == nil {
		h.writeError(w, r, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username    string         `json:"username" validate:"required,max=64"`
	DisplayName string         `json:"display_name" validate:"max=100"`
	Password    string         `json:"password" validate:"required,min=8"`
	Role        model.UserRole `json:"role" validate:"required,oneof=student teacher admin"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	u := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	u.ID, err = h.store.CreateUser(r.Context(), u)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			h.writeError(w, r, badRequest("username already taken"))
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if u == nil {
		h.writeError(w, r, errNotFound)
		return
	}
	h.logger.Info("toggled user", "user_id", id, "active", u.Active)
	writeJSON(w, http.StatusOK, u)
}

// handleUploadPapers imports a JSON array of papers, either as the raw body or
// as the "papers_file" field of a multipart form.
func (h *Handler) handleUploadPapers(w http.ResponseWriter, r *http.Request) {
	name := "upload"
	var data []byte
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			h.writeError(w, r, badRequest("file too large"))
			return
		}
		file, header, err := r.FormFile("papers_file")
		if err != nil {
			h.writeError(w, r, badRequest("no file uploaded"))
			return
		}
		defer file.Close()
		name = header.Filename
		data, err = io.ReadAll(file)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	} else {
		data, err = io.ReadAll(io.LimitReader(r.Body, 10<<20))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	var papers []model.PaperImport
	if err := json.Unmarshal(data, &papers); err != nil {
		h.writeError(w, r, badRequest("invalid JSON: "+err.Error()))
		return
	}
	for _, p := range papers {
		if p.ID == "" || len(p.Questions) == 0 {
			h.writeError(w, r, badRequest("every paper needs an id and questions"))
			return
		}
	}

	imported, err := h.store.ImportPapers(r.Context(), "admin:"+name, data, papers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count := len(papers)
	if !imported {
		count = 0
	}
	h.logger.Info("uploaded papers via admin", "filename", name, "count", count)
	writeJSON(w, http.StatusOK, map[string]any{"imported": count, "duplicate": !imported})
}
