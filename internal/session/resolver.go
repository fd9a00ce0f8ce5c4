package session

import (
	"sort"

	"github.com/pavelanni/gcsemock/internal/draft"
	"github.com/pavelanni/gcsemock/internal/model"
)

// Resolver tracks, for every optional group of a paper, which member is the
// student's choice. Deselected answers stay in the answer store but are left
// out of the submission.
type Resolver struct {
	groupOf  map[string]string   // question ID -> group
	members  map[string][]string // group -> question IDs in paper order
	selected map[string]string   // group -> question ID
}

// NewResolver builds a resolver for the paper's optional groups.
func NewResolver(paper model.ExamPaper) *Resolver {
	r := &Resolver{
		groupOf:  make(map[string]string),
		members:  paper.OptionalGroups(),
		selected: make(map[string]string),
	}
	for group, ids := range r.members {
		for _, id := range ids {
			r.groupOf[id] = group
		}
	}
	return r
}

// Select makes questionID the choice of its group. It reports false when the
// question is not in any optional group.
func (r *Resolver) Select(questionID string) bool {
	group, ok := r.groupOf[questionID]
	if !ok {
		return false
	}
	r.selected[group] = questionID
	return true
}

// HandleAnswerEdited selects the edited question; typing into a member of a
// group is an implicit choice.
func (r *Resolver) HandleAnswerEdited(ev draft.AnswerEdited) {
	r.Select(ev.QuestionID)
}

// Selected returns the chosen member of group. Before any choice the first
// member in paper order stands in.
func (r *Resolver) Selected(group string) (string, bool) {
	if id, ok := r.selected[group]; ok {
		return id, true
	}
	ids := r.members[group]
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], false
}

// Group returns the optional group of a question, if any.
func (r *Resolver) Group(questionID string) (string, bool) {
	g, ok := r.groupOf[questionID]
	return g, ok
}

// IsExcluded reports whether a question is a non-selected member of its group.
func (r *Resolver) IsExcluded(questionID string) bool {
	group, ok := r.groupOf[questionID]
	if !ok {
		return false
	}
	chosen, _ := r.Selected(group)
	return chosen != questionID
}

// Excluded returns every currently excluded question ID.
func (r *Resolver) Excluded() []string {
	var out []string
	for id := range r.groupOf {
		if r.IsExcluded(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Selections returns the explicit choice of every group that has one.
func (r *Resolver) Selections() map[string]string {
	out := make(map[string]string, len(r.selected))
	for g, id := range r.selected {
		out[g] = id
	}
	return out
}

// Filter drops the answers of non-selected group members entirely.
func (r *Resolver) Filter(answers []model.StudentAnswer) []model.StudentAnswer {
	out := make([]model.StudentAnswer, 0, len(answers))
	for _, a := range answers {
		if r.IsExcluded(a.QuestionID) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Restore rebuilds choices from a restored draft. A saved choice wins; a
// group without one takes its most recently edited member with text.
func (r *Resolver) Restore(answers []model.StudentAnswer, saved map[string]string) {
	latest := make(map[string]model.StudentAnswer)
	for _, a := range answers {
		group, ok := r.groupOf[a.QuestionID]
		if !ok || a.Text == "" {
			continue
		}
		if cur, seen := latest[group]; !seen || a.UpdatedAt.After(cur.UpdatedAt) {
			latest[group] = a
		}
	}
	for group, a := range latest {
		r.selected[group] = a.QuestionID
	}
	for group, id := range saved {
		if r.groupOf[id] == group {
			r.selected[group] = id
		}
	}
}
