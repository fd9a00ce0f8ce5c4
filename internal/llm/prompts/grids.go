package prompts

import (
	"strings"

	"github.com/pavelanni/gcsemock/internal/model"
)

// AODescriptor describes one assessment objective.
type AODescriptor struct {
	AO          string
	Description string
}

// LevelBand is a mark range and what an answer in it looks like.
type LevelBand struct {
	Level      int
	Min        int
	Max        int
	Descriptor string
}

// MarkingGrid is what the examiner marks one question against.
type MarkingGrid struct {
	QuestionID string
	Number     string
	Text       string
	Marks      int
	Type       model.QuestionType
	WordTarget int
	AOs        []AODescriptor
	Levels     []LevelBand
}

var languageAOs = map[string]string{
	"AO1": "Identify and interpret explicit and implicit information and ideas; select and synthesise evidence from different texts.",
	"AO2": "Explain, comment on and analyse how writers use language and structure to achieve effects and influence readers, using relevant subject terminology.",
	"AO3": "Compare writers' ideas and perspectives, as well as how these are conveyed, across two or more texts.",
	"AO4": "Evaluate texts critically and support this with appropriate textual references.",
	"AO5": "Communicate clearly, effectively and imaginatively, selecting and adapting tone, style and register for different forms, purposes and audiences; organise information and ideas using structural and grammatical features.",
	"AO6": "Use a range of vocabulary and sentence structures for clarity, purpose and effect, with accurate spelling and punctuation.",
}

var literatureAOs = map[string]string{
	"AO1": "Read, understand and respond to texts, maintaining a critical style and an informed personal response, using textual references to support interpretations.",
	"AO2": "Analyse the language, form and structure used by a writer to create meanings and effects, using relevant subject terminology.",
	"AO3": "Show understanding of the relationships between texts and the contexts in which they were written.",
	"AO4": "Use a range of vocabulary and sentence structures for clarity, purpose and effect, with accurate spelling and punctuation.",
}

var levelDescriptors = [...]string{
	1: "Simple, limited: little relevant detail, mostly paraphrase or basic comment.",
	2: "Some, attempts: some understanding and relevant references, attempts to comment on effect.",
	3: "Clear, relevant: clear explanation, apt references, accurate use of terminology.",
	4: "Perceptive, detailed: detailed and perceptive analysis, judicious references, sophisticated terminology.",
}

// Describe returns the descriptor of an assessment objective for a paper type.
func Describe(paperType model.PaperType, ao string) AODescriptor {
	ao = strings.ToUpper(strings.TrimSpace(ao))
	table := languageAOs
	if paperType == model.PaperLiterature {
		table = literatureAOs
	}
	return AODescriptor{AO: ao, Description: table[ao]}
}

// LevelBands splits a question's marks into up to four level bands. Bands
// that would be empty for low-tariff questions are dropped.
func LevelBands(marks int) []LevelBand {
	var bands []LevelBand
	for level := 1; level <= 4; level++ {
		lo := (level-1)*marks/4 + 1
		hi := level * marks / 4
		if hi < lo {
			continue
		}
		bands = append(bands, LevelBand{Level: level, Min: lo, Max: hi, Descriptor: levelDescriptors[level]})
	}
	return bands
}

// GridFor builds the marking grid of a question. Short questions are marked
// per valid point and get no level bands.
func GridFor(paperType model.PaperType, q model.Question) MarkingGrid {
	g := MarkingGrid{
		QuestionID: q.ID,
		Number:     q.Number,
		Text:       q.Text,
		Marks:      q.Marks,
		Type:       q.Type,
		WordTarget: q.WordTarget,
	}
	for _, ao := range q.AOs {
		g.AOs = append(g.AOs, Describe(paperType, ao))
	}
	if q.Type != model.QuestionShort {
		g.Levels = LevelBands(q.Marks)
	}
	return g
}

// DefaultTimeLimit returns the exam duration in minutes for a paper type.
func DefaultTimeLimit(paperType model.PaperType) int {
	switch paperType {
	case model.PaperLiterature:
		return 50
	default:
		return 105
	}
}

// PaperStructure describes the question layout of a paper type.
func PaperStructure(paperType model.PaperType) string {
	switch paperType {
	case model.PaperLanguage1:
		return `Section A (Reading), one literary fiction extract as Source A:
- Q1: list four things from a given part of the source (4 marks, AO1, short)
- Q2: how the writer uses language in a given part (8 marks, AO2, long)
- Q3: how the writer structures the whole text (8 marks, AO2, long)
- Q4: evaluate a statement about part of the source (20 marks, AO4, extended)
Section B (Writing), a choice of two tasks in one optional group:
- Q5: a description suggested by an image (40 marks, AO5 24 + AO6 16, extended, with image prompts)
- Q6: a narrative (40 marks, AO5 24 + AO6 16, extended)`
	case model.PaperLanguage2:
		return `Section A (Reading), two linked non-fiction sources, Source A (20th or 21st century) and Source B (19th century):
- Q1: choose four true statements about part of Source A (4 marks, AO1, short)
- Q2: summarise the differences between the two sources (8 marks, AO1, long)
- Q3: how the writer of one source uses language (12 marks, AO2, long)
- Q4: compare how the writers convey their perspectives (16 marks, AO3, extended)
Section B (Writing):
- Q5: write to present a viewpoint on a statement linked to the sources (40 marks, AO5 24 + AO6 16, extended)`
	case model.PaperLiterature:
		return `One set text extract as the source, a choice of two essay questions in one optional group:
- Q1: essay on the extract and the whole text (34 marks: AO1 12, AO2 12, AO3 6, AO4 4, extended)
- Q2: alternative essay on a theme of the whole text (34 marks, same weighting, extended)`
	default:
		return ""
	}
}
