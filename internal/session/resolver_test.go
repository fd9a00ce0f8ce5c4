package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pavelanni/gcsemock/internal/draft"
	"github.com/pavelanni/gcsemock/internal/model"
)

func choicePaper() model.ExamPaper {
	return model.ExamPaper{
		ID:        "paper-choice",
		Type:      model.PaperLanguage1,
		TimeLimit: 105,
		Questions: []model.Question{
			{ID: "q1", Number: "1", Marks: 4, Section: model.SectionA},
			{ID: "q2", Number: "2", Marks: 8, Section: model.SectionA},
			{ID: "q5", Number: "5", Marks: 40, Section: model.SectionB, OptionalGroup: "choice"},
			{ID: "q6", Number: "6", Marks: 40, Section: model.SectionB, OptionalGroup: "choice"},
		},
	}
}

func answersFor(p model.ExamPaper, texts map[string]string) []model.StudentAnswer {
	var out []model.StudentAnswer
	for _, q := range p.Questions {
		out = append(out, model.StudentAnswer{QuestionID: q.ID, Text: texts[q.ID]})
	}
	return out
}

func ids(answers []model.StudentAnswer) []string {
	var out []string
	for _, a := range answers {
		out = append(out, a.QuestionID)
	}
	return out
}

func TestResolverDefaultsToFirstMember(t *testing.T) {
	r := NewResolver(choicePaper())
	sel, explicit := r.Selected("choice")
	require.Equal(t, "q5", sel)
	require.False(t, explicit)
	require.True(t, r.IsExcluded("q6"))
	require.False(t, r.IsExcluded("q1"))
	require.Equal(t, []string{"q1", "q2", "q5"}, ids(r.Filter(answersFor(choicePaper(), nil))))
}

func TestResolverTypingSelects(t *testing.T) {
	r := NewResolver(choicePaper())
	r.HandleAnswerEdited(draft.AnswerEdited{QuestionID: "q6", Text: "The"})

	sel, explicit := r.Selected("choice")
	require.Equal(t, "q6", sel)
	require.True(t, explicit)

	filtered := r.Filter(answersFor(choicePaper(), map[string]string{"q5": "old", "q6": "The"}))
	require.Equal(t, []string{"q1", "q2", "q6"}, ids(filtered))
	require.Equal(t, "The", filtered[2].Text)
}

func TestResolverExplicitSwitch(t *testing.T) {
	r := NewResolver(choicePaper())
	require.True(t, r.Select("q6"))
	require.True(t, r.Select("q5"))
	require.False(t, r.Select("q1"))
	require.Equal(t, []string{"q6"}, r.Excluded())
	require.Equal(t, map[string]string{"choice": "q5"}, r.Selections())
}

func TestResolverRestore(t *testing.T) {
	r := NewResolver(choicePaper())
	now := time.Now()
	r.Restore([]model.StudentAnswer{
		{QuestionID: "q5", Text: "first attempt", UpdatedAt: now.Add(-time.Minute)},
		{QuestionID: "q6", Text: "second thoughts", UpdatedAt: now},
		{QuestionID: "q1", Text: "unrelated", UpdatedAt: now.Add(time.Hour)},
	}, nil)
	sel, _ := r.Selected("choice")
	require.Equal(t, "q6", sel)

	empty := NewResolver(choicePaper())
	empty.Restore([]model.StudentAnswer{{QuestionID: "q6", Text: ""}}, nil)
	_, explicit := empty.Selected("choice")
	require.False(t, explicit)
}

func TestResolverRestoreSavedChoiceWins(t *testing.T) {
	r := NewResolver(choicePaper())
	r.Restore([]model.StudentAnswer{
		{QuestionID: "q5", Text: "typed first", UpdatedAt: time.Now()},
	}, map[string]string{"choice": "q6"})
	sel, explicit := r.Selected("choice")
	require.True(t, explicit)
	require.Equal(t, "q6", sel)

	// A saved choice naming a question outside its group is ignored.
	stale := NewResolver(choicePaper())
	stale.Restore(nil, map[string]string{"choice": "q1"})
	_, explicit = stale.Selected("choice")
	require.False(t, explicit)
}

func TestPropertyOptionalGroupExclusivity(t *testing.T) {
	paper := choicePaper()
	rapid.Check(t, func(rt *rapid.T) {
		r := NewResolver(paper)
		events := rapid.IntRange(0, 20).Draw(rt, "events")
		for i := 0; i < events; i++ {
			id := rapid.SampledFrom([]string{"q1", "q2", "q5", "q6"}).Draw(rt, "question")
			if rapid.Bool().Draw(rt, "typed") {
				r.HandleAnswerEdited(draft.AnswerEdited{QuestionID: id, Text: "x"})
			} else {
				r.Select(id)
			}
		}

		filtered := r.Filter(answersFor(paper, map[string]string{"q5": "five", "q6": "six"}))
		members := 0
		for _, a := range filtered {
			if a.QuestionID == "q5" || a.QuestionID == "q6" {
				members++
			}
		}
		if members != 1 {
			rt.Fatalf("payload has %d members of the optional group: %v", members, ids(filtered))
		}
		if len(filtered) != 3 {
			rt.Fatalf("non-group questions dropped: %v", ids(filtered))
		}
	})
}
