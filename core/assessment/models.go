package assessment

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
)

// Assessment kinds.
const (
	KindExam           Kind = "exam"
	KindHomework       Kind = "homework"
	KindProject        Kind = "project"
	KindOral           Kind = "oral"
	KindRemedial       Kind = "remedial"
	KindSelfassessable Kind = "selfassessable"
)

type Kind string

func (k Kind) IsValid() bool {
	switch k {
	case KindExam, KindHomework, KindProject, KindOral, KindRemedial, KindSelfassessable:
		return true
	}
	return false
}

type Assessment struct {
	ID        int       `json:"id" db:"id"`
	SubjectID int       `json:"subject_id" db:"subject_id"`
	Task      string    `json:"task" db:"task"`
	DueDate   time.Time `json:"due_date" db:"due_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Kind      Kind      `json:"kind" db:"kind"`
}

// Quiz is a self-assessable attached 1:1 to an Assessment of kind
// selfassessable.
type Quiz struct {
	ID           int `json:"id" db:"id"`
	AssessmentID int `json:"assessment_id" db:"assessment_id"`
}

// QuizQuestion holds the correct option and 1-4 incorrect ones.
type QuizQuestion struct {
	ID         int         `json:"id" db:"id"`
	QuizID     int         `json:"quiz_id" db:"selfassessable_id"`
	Question   string      `json:"question" db:"question"`
	Correct    string      `json:"correct" db:"correct"`
	Incorrect1 string      `json:"incorrect1" db:"incorrect1"`
	Incorrect2 null.String `json:"incorrect2" db:"incorrect2"`
	Incorrect3 null.String `json:"incorrect3" db:"incorrect3"`
	Incorrect4 null.String `json:"incorrect4" db:"incorrect4"`
}

// Options returns the correct answer plus all present incorrect ones.
func (q QuizQuestion) Options() []string {
	opts := []string{q.Correct, q.Incorrect1}
	for _, inc := range []null.String{q.Incorrect2, q.Incorrect3, q.Incorrect4} {
		if inc.Valid {
			opts = append(opts, inc.String)
		}
	}
	return opts
}

// PublicQuizQuestion is the student-facing shape: options shuffled per
// request, the correct index never exposed.
type PublicQuizQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Public shuffles the options with a fresh uniform permutation. Repeated
// fetches of the same question yield different orderings.
func (q QuizQuestion) Public() PublicQuizQuestion {
	opts := q.Options()
	rand.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	return PublicQuizQuestion{ID: q.ID, Question: q.Question, Options: opts}
}

type QuizSubmission struct {
	ID        int    `json:"id" db:"id"`
	QuizID    int    `json:"quiz_id" db:"selfassessable_id"`
	StudentID int    `json:"student_id" db:"student_id"`
	Answers   string `json:"answers" db:"answers"` // comma-joined, in question order
}

// PendingGrade is the staged result of a graded quiz, promoted to a
// permanent grade by the sweep once the assessment's due date passes.
type PendingGrade struct {
	ID        int             `json:"id" db:"id"`
	QuizID    int             `json:"quiz_id" db:"selfassessable_id"`
	StudentID int             `json:"student_id" db:"student_id"`
	Grade     decimal.Decimal `json:"grade" db:"grade"`
}

type HomeworkSubmission struct {
	ID        int    `json:"id" db:"id"`
	Path      string `json:"path" db:"path"`
	StudentID int    `json:"student_id" db:"student_id"`
	TaskID    int    `json:"task_id" db:"task_id"`
}

// NewQuiz carries the parallel option arrays supplied at creation. All
// present arrays must match the question count.
type NewQuiz struct {
	Questions  []string `json:"questions" validate:"required,min=1"`
	Correct    []string `json:"correct" validate:"required"`
	Incorrect1 []string `json:"incorrect1" validate:"required"`
	Incorrect2 []string `json:"incorrect2"`
	Incorrect3 []string `json:"incorrect3"`
	Incorrect4 []string `json:"incorrect4"`
}

func (nq *NewQuiz) Validate() error {
	if err := core.Validate.Struct(nq); err != nil {
		return err
	}
	n := len(nq.Questions)
	mismatch := len(nq.Correct) != n || len(nq.Incorrect1) != n
	for _, opt := range [][]string{nq.Incorrect2, nq.Incorrect3, nq.Incorrect4} {
		if opt != nil && len(opt) != n {
			mismatch = true
		}
	}
	if mismatch {
		return core.NewValidationError(nil, core.FieldError{Field: "questions", Error: "option arrays must match the question count"})
	}
	return nil
}

// questions materializes the parallel arrays into per-question rows.
func (nq *NewQuiz) questions() []QuizQuestion {
	qs := make([]QuizQuestion, 0, len(nq.Questions))
	for i := range nq.Questions {
		q := QuizQuestion{
			Question:   nq.Questions[i],
			Correct:    nq.Correct[i],
			Incorrect1: nq.Incorrect1[i],
		}
		if nq.Incorrect2 != nil {
			q.Incorrect2 = null.StringFrom(nq.Incorrect2[i])
		}
		if nq.Incorrect3 != nil {
			q.Incorrect3 = null.StringFrom(nq.Incorrect3[i])
		}
		if nq.Incorrect4 != nil {
			q.Incorrect4 = null.StringFrom(nq.Incorrect4[i])
		}
		qs = append(qs, q)
	}
	return qs
}

type NewAssessment struct {
	SubjectID int       `json:"subject_id" validate:"required"`
	Task      string    `json:"task" validate:"required"`
	DueDate   time.Time `json:"due_date" validate:"required"`
	Kind      Kind      `json:"kind" validate:"required"`
	Quiz      *NewQuiz  `json:"quiz"`
}

func (na *NewAssessment) Validate() error {
	na.Task = core.CleanString(na.Task)
	if err := core.Validate.Struct(na); err != nil {
		return err
	}
	if !na.Kind.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown assessment kind"})
	}
	if na.Kind == KindSelfassessable {
		if na.Quiz == nil {
			return core.NewValidationError(nil, core.FieldError{Field: "quiz", Error: "a selfassessable assessment requires a quiz"})
		}
		return na.Quiz.Validate()
	}
	return nil
}

// UpdateAssessment is a partial patch applied via bound parameters only.
type UpdateAssessment struct {
	SubjectID null.Int    `json:"subject_id"`
	Task      null.String `json:"task"`
	DueDate   null.Time   `json:"due_date"`
	Kind      null.String `json:"kind"`
}

func (ua UpdateAssessment) IsEmpty() bool {
	return !ua.SubjectID.Valid && !ua.Task.Valid && !ua.DueDate.Valid && !ua.Kind.Valid
}

func (ua UpdateAssessment) Validate() error {
	if ua.Kind.Valid && !Kind(ua.Kind.String).IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown assessment kind"})
	}
	return nil
}

type NewQuizSubmission struct {
	AssessmentID int      `json:"assessment_id" validate:"required"`
	Answers      []string `json:"answers" validate:"required,min=1"`
}

func (ns *NewQuizSubmission) Validate() error { return core.Validate.Struct(ns) }

// QueryFilter narrows assessment listings. Task and Name are
// case-insensitive substring matches; Due means due today or later.
type QueryFilter struct {
	Task      null.String `query:"task"`
	Due       null.Bool   `query:"due"`
	SubjectID null.Int    `query:"subject_id"`
	CourseID  null.Int    `query:"course_id"`
	TeacherID null.Int    `query:"teacher_id"`
	Name      null.String `query:"name"` // subject name
}

func (qf *QueryFilter) Clean() {
	if qf.Task.Valid {
		qf.Task.String = core.CleanString(qf.Task.String)
	}
	if qf.Name.Valid {
		qf.Name.String = core.CleanString(qf.Name.String)
	}
}

type QuizFilter struct {
	AssessmentID null.Int `query:"assessment_id"`
}

// Score grades a submission by positional string equality against the
// stored correct answers, scaled to 0-10.
func Score(answers, corrects []string) decimal.Decimal {
	if len(answers) == 0 {
		return decimal.Zero
	}
	var matches int
	for i, answer := range answers {
		if i < len(corrects) && answer == corrects[i] {
			matches++
		}
	}
	return decimal.NewFromInt(int64(matches * 10)).Div(decimal.NewFromInt(int64(len(answers))))
}
