package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/pavelanni/gcsemock/internal/llm"
	"github.com/pavelanni/gcsemock/internal/model"
)

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var (
		list []model.Assignment
		err  error
	)
	if user.Role == model.UserRoleStudent {
		list, err = h.store.ListAssignmentsForStudent(r.Context(), user.ID)
	} else {
		list, err = h.store.ListAssignmentsForTeacher(r.Context(), user.ID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

type assignmentRequest struct {
	ClassID      int64                      `json:"class_id" validate:"required"`
	Title        string                     `json:"title" validate:"required_without=Generate,max=200"`
	Instructions string                     `json:"instructions"`
	Topic        string                     `json:"topic" validate:"max=200"`
	Difficulty   string                     `json:"difficulty" validate:"omitempty,oneof=foundation higher"`
	Questions    []model.AssignmentQuestion `json:"questions" validate:"required_without=Generate,dive"`
	DueAt        *time.Time                 `json:"due_at"`

	// Generate asks the marking service for the questions.
	Generate     bool            `json:"generate"`
	PaperType    model.PaperType `json:"paper_type" validate:"omitempty,oneof=language-paper-1 language-paper-2 literature"`
	NumQuestions int             `json:"num_questions" validate:"omitempty,min=1,max=10"`
	AOs          []string        `json:"aos" validate:"dive,oneof=AO1 AO2 AO3 AO4 AO5 AO6"`
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	class, err := h.store.GetClass(r.Context(), req.ClassID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if class == nil {
		h.writeError(w, r, errNotFound)
		return
	}
	if class.TeacherID != user.ID && user.Role != model.UserRoleAdmin {
		h.writeError(w, r, errForbidden)
		return
	}

	a := model.Assignment{
		ClassID:      class.ID,
		Title:        req.Title,
		Instructions: req.Instructions,
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		Questions:    req.Questions,
		DueAt:        req.DueAt,
		CreatedBy:    user.ID,
	}
	if req.Generate {
		if h.limiter != nil && !h.limiter.Allow() {
			h.writeError(w, r, errTooManyRequests)
			return
		}
		set, err := h.gateway.GeneratePracticeSet(r.Context(), llm.PracticeSetRequest{
			PaperType:    req.PaperType,
			Topic:        req.Topic,
			Difficulty:   req.Difficulty,
			NumQuestions: req.NumQuestions,
			AOs:          req.AOs,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if a.Title == "" {
			a.Title = set.Title
		}
		if a.Instructions == "" {
			a.Instructions = set.Instructions
		}
		a.Questions = set.Questions
	}
	if len(a.Questions) == 0 {
		h.writeError(w, r, badRequest("assignment has no questions"))
		return
	}

	id, err := h.store.CreateAssignment(r.Context(), a)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a.ID = id
	h.logger.Info("created assignment", "assignment_id", id, "class_id", class.ID, "generated", req.Generate)
	writeJSON(w, http.StatusCreated, a)
}

// visibleAssignment loads the assignment in the URL together with whether the
// caller teaches its class. Students must be on the roster.
func (h *Handler) visibleAssignment(r *http.Request) (*model.Assignment, bool, error) {
	id, err := int64Param(r, "id")
	if err != nil {
		return nil, false, err
	}
	return h.assignmentFor(r.Context(), id, model.UserFromContext(r.Context()))
}

func (h *Handler) assignmentFor(ctx context.Context, id int64, user *model.User) (*model.Assignment, bool, error) {
	a, err := h.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if a == nil {
		return nil, false, errNotFound
	}
	class, err := h.store.GetClass(ctx, a.ClassID)
	if err != nil {
		return nil, false, err
	}
	if class == nil {
		return nil, false, errNotFound
	}
	if class.TeacherID == user.ID || user.Role == model.UserRoleAdmin {
		return a, true, nil
	}
	member, err := h.store.IsClassMember(ctx, class.ID, user.ID)
	if err != nil {
		return nil, false, err
	}
	if !member {
		return nil, false, errNotFound
	}
	return a, false, nil
}

func (h *Handler) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	a, _, err := h.visibleAssignment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	a, teaches, err := h.visibleAssignment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !teaches {
		h.writeError(w, r, errForbidden)
		return
	}
	if err := h.store.DeleteAssignment(r.Context(), a.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignmentSubmission struct {
	Answers []model.AssignmentAnswer `json:"answers" validate:"required,min=1,dive"`
}

func (h *Handler) handleSubmitAssignment(w http.ResponseWriter, r *http.Request) {
	a, teaches, err := h.visibleAssignment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if teaches {
		h.writeError(w, r, errForbidden)
		return
	}
	var req assignmentSubmission
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.gateway.MarkAssignment(r.Context(), *a, req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	res.AssignmentID = a.ID
	res.StudentID = user.ID
	res.Answers = req.Answers
	id, err := h.store.SaveAssignmentResult(r.Context(), *res)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res.ID = id
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAssignmentResults(w http.ResponseWriter, r *http.Request) {
	a, teaches, err := h.visibleAssignment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if teaches {
		list, err := h.store.ListAssignmentResults(r.Context(), a.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if list == nil {
			list = []model.AssignmentResult{}
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	user := model.UserFromContext(r.Context())
	res, err := h.store.GetAssignmentResult(r.Context(), a.ID, user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list := []model.AssignmentResult{}
	if res != nil {
		list = append(list, *res)
	}
	writeJSON(w, http.StatusOK, list)
}
