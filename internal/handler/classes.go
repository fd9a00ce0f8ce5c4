package handler

import (
	"context"
	"net/http"

	"github.com/pavelanni/gcsemock/internal/model"
)

func (h *Handler) handleListClasses(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var (
		classes []model.Class
		err     error
	)
	if user.Role == model.UserRoleStudent {
		classes, err = h.store.ListClassesForStudent(r.Context(), user.ID)
	} else {
		classes, err = h.store.ListClassesByTeacher(r.Context(), user.ID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if classes == nil {
		classes = []model.Class{}
	}
	writeJSON(w, http.StatusOK, classes)
}

type classRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	c, err := h.store.CreateClass(r.Context(), req.Name, user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("created class", "class_id", c.ID, "teacher_id", user.ID)
	writeJSON(w, http.StatusCreated, c)
}

// ownedClass loads the class in the URL if the caller teaches it.
func (h *Handler) ownedClass(r *http.Request) (*model.Class, error) {
	id, err := int64Param(r, "id")
	if err != nil {
		return nil, err
	}
	c, err := h.store.GetClass(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errNotFound
	}
	user := model.UserFromContext(r.Context())
	if c.TeacherID != user.ID && user.Role != model.UserRoleAdmin {
		return nil, errForbidden
	}
	return c, nil
}

// canSeeClass reports whether the caller teaches or belongs to the class.
func (h *Handler) canSeeClass(ctx context.Context, c *model.Class) (bool, error) {
	user := model.UserFromContext(ctx)
	if c.TeacherID == user.ID || user.Role == model.UserRoleAdmin {
		return true, nil
	}
	return h.store.IsClassMember(ctx, c.ID, user.ID)
}

func (h *Handler) handleGetClass(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.store.GetClass(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if c == nil {
		h.writeError(w, r, errNotFound)
		return
	}
	ok, err := h.canSeeClass(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, errNotFound)
		return
	}
	if user := model.UserFromContext(r.Context()); user.Role == model.UserRoleStudent {
		c.JoinCode = ""
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleRenameClass(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedClass(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req classRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.RenameClass(r.Context(), c.ID, req.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	c.Name = req.Name
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedClass(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteClass(r.Context(), c.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("deleted class", "class_id", c.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedClass(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	members, err := h.store.ListClassMembers(r.Context(), c.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if members == nil {
		members = []model.ClassMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

type memberRequest struct {
	Username string `json:"username" validate:"required"`
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedClass(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req memberRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	student, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if student == nil || student.Role != model.UserRoleStudent {
		h.writeError(w, r, badRequest("no student named "+req.Username))
		return
	}
	if err := h.store.AddClassMember(r.Context(), c.ID, student.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.ClassMember{
		ClassID:     c.ID,
		UserID:      student.ID,
		Username:    student.Username,
		DisplayName: student.DisplayName,
	})
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownedClass(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	userID, err := int64Param(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.RemoveClassMember(r.Context(), c.ID, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type joinRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6"`
}

func (h *Handler) handleJoinClass(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	if user.Role != model.UserRoleStudent {
		h.writeError(w, r, errForbidden)
		return
	}
	c, err := h.store.GetClassByJoinCode(r.Context(), req.JoinCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if c == nil {
		h.writeError(w, r, errNotFound)
		return
	}
	if err := h.store.AddClassMember(r.Context(), c.ID, user.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("student joined class", "class_id", c.ID, "user_id", user.ID)
	c.JoinCode = ""
	writeJSON(w, http.StatusOK, c)
}
