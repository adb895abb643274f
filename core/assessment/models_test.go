package assessment

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		answers  []string
		corrects []string
		want     string
	}{
		{name: "all correct", answers: []string{"a", "b", "c"}, corrects: []string{"a", "b", "c"}, want: "10"},
		{name: "none correct", answers: []string{"x", "y", "z"}, corrects: []string{"a", "b", "c"}, want: "0"},
		{name: "three of four", answers: []string{"a", "b", "c", "x"}, corrects: []string{"a", "b", "c", "d"}, want: "7.5"},
		{name: "one of three", answers: []string{"a", "y", "z"}, corrects: []string{"a", "b", "c"}, want: "3.3333333333333333"},
		{name: "no answers", answers: nil, corrects: []string{"a"}, want: "0"},
		{name: "more answers than questions", answers: []string{"a", "b"}, corrects: []string{"a"}, want: "5"},
		{name: "order matters", answers: []string{"b", "a"}, corrects: []string{"a", "b"}, want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.answers, tt.corrects)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestQuizQuestion_Options(t *testing.T) {
	q := QuizQuestion{
		Question:   "2 + 2 ?",
		Correct:    "4",
		Incorrect1: "3",
		Incorrect2: null.StringFrom("5"),
	}
	assert.Equal(t, []string{"4", "3", "5"}, q.Options())

	q.Incorrect3 = null.StringFrom("6")
	q.Incorrect4 = null.StringFrom("7")
	assert.Len(t, q.Options(), 5)
}

func TestQuizQuestion_Public(t *testing.T) {
	q := QuizQuestion{
		ID:         42,
		Question:   "capital of France ?",
		Correct:    "Paris",
		Incorrect1: "Lyon",
		Incorrect2: null.StringFrom("Marseille"),
		Incorrect3: null.StringFrom("Lille"),
		Incorrect4: null.StringFrom("Nantes"),
	}

	pub := q.Public()
	assert.Equal(t, q.ID, pub.ID)
	assert.Equal(t, q.Question, pub.Question)

	// shuffling must be a permutation of the original options
	want := q.Options()
	got := append([]string(nil), pub.Options...)
	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestNewQuiz_Validate(t *testing.T) {
	valid := NewQuiz{
		Questions:  []string{"q1", "q2"},
		Correct:    []string{"a", "b"},
		Incorrect1: []string{"x", "y"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		quiz NewQuiz
	}{
		{name: "no questions", quiz: NewQuiz{Correct: []string{"a"}, Incorrect1: []string{"x"}}},
		{name: "correct count mismatch", quiz: NewQuiz{Questions: []string{"q1", "q2"}, Correct: []string{"a"}, Incorrect1: []string{"x", "y"}}},
		{name: "incorrect1 count mismatch", quiz: NewQuiz{Questions: []string{"q1"}, Correct: []string{"a"}, Incorrect1: []string{"x", "y"}}},
		{name: "optional array count mismatch", quiz: NewQuiz{Questions: []string{"q1"}, Correct: []string{"a"}, Incorrect1: []string{"x"}, Incorrect2: []string{"y", "z"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.quiz.Validate())
		})
	}
}

func TestNewAssessment_Validate(t *testing.T) {
	due := time.Now().Add(24 * time.Hour)

	na := NewAssessment{SubjectID: 1, Task: "essay", DueDate: due, Kind: KindHomework}
	require.NoError(t, na.Validate())

	na.Kind = "pop-quiz"
	assert.Error(t, na.Validate())

	na.Kind = KindSelfassessable
	err := na.Validate()
	require.Error(t, err)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)

	na.Quiz = &NewQuiz{
		Questions:  []string{"q1"},
		Correct:    []string{"a"},
		Incorrect1: []string{"x"},
	}
	assert.NoError(t, na.Validate())
}

func TestUpdateAssessment_IsEmpty(t *testing.T) {
	assert.True(t, UpdateAssessment{}.IsEmpty())
	assert.False(t, UpdateAssessment{Task: null.StringFrom("t")}.IsEmpty())
}
