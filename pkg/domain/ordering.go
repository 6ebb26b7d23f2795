package domain

import (
	"regexp"
	"sort"
	"strconv"
)

var questionNumberPattern = regexp.MustCompile(`Question (\d+):`)

// QuestionIndex extracts N from a "Question N:" prefix embedded in generated quiz text.
func QuestionIndex(question string) (int, bool) {
	m := questionNumberPattern.FindStringSubmatch(question)
	if len(m) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// AssignQuizPositions stores an explicit order on each quiz: the embedded
// question number when present, otherwise the 1-based arrival order.
func AssignQuizPositions(quizzes []Quiz) []Quiz {
	out := make([]Quiz, len(quizzes))
	for i, q := range quizzes {
		if n, ok := QuestionIndex(q.Question); ok {
			q.Position = n
		} else if q.Position <= 0 {
			q.Position = i + 1
		}
		out[i] = q
	}
	return out
}

// SortQuizzes orders quizzes by stored position. Rows written before positions
// existed fall back to the embedded question number.
func SortQuizzes(quizzes []Quiz) {
	sort.SliceStable(quizzes, func(i, j int) bool {
		return quizOrderKey(quizzes[i]) < quizOrderKey(quizzes[j])
	})
}

func quizOrderKey(q Quiz) int {
	if q.Position > 0 {
		return q.Position
	}
	n, _ := QuestionIndex(q.Question)
	return n
}

// SortChapters orders chapters by chapter number and their quizzes by position.
func SortChapters(chapters []Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Chapter < chapters[j].Chapter
	})
	for i := range chapters {
		SortQuizzes(chapters[i].Quiz)
	}
}

// UniqueChoices keeps one choice per letter. A repeated letter overwrites the
// earlier answer but keeps its original slot.
func UniqueChoices(choices []Choice) []Choice {
	out := make([]Choice, 0, len(choices))
	index := make(map[string]int, len(choices))
	for _, c := range choices {
		if i, ok := index[c.Letter]; ok {
			out[i] = c
			continue
		}
		index[c.Letter] = len(out)
		out = append(out, c)
	}
	return out
}
