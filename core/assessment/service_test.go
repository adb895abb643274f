package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

// fakeRepo overrides only what each test needs; anything else panics.
type fakeRepo struct {
	Repository

	assessment Assessment
	quiz       Quiz
	questions  []QuizQuestion
	answered   bool

	createdSub     *QuizSubmission
	createdPending *PendingGrade
	promoted       int64
	promoteCalls   int
}

func (r *fakeRepo) GetAssessment(ctx context.Context, id int) (Assessment, error) {
	if r.assessment.ID == 0 {
		return Assessment{}, ErrNotFound
	}
	return r.assessment, nil
}

func (r *fakeRepo) StudentCourse(ctx context.Context, studentID int) (int, error) { return 1, nil }
func (r *fakeRepo) SubjectCourse(ctx context.Context, subjectID int) (int, error) { return 1, nil }

func (r *fakeRepo) GetQuizByAssessment(ctx context.Context, assessmentID int) (Quiz, error) {
	return r.quiz, nil
}

func (r *fakeRepo) QuizAnswered(ctx context.Context, studentID, quizID int) (bool, error) {
	return r.answered, nil
}

func (r *fakeRepo) FilterDueQuizQuestions(ctx context.Context, studentID int, filter QuizFilter) ([]QuizQuestion, error) {
	return r.questions, nil
}

func (r *fakeRepo) CreateQuizSubmission(ctx context.Context, sub QuizSubmission, pending PendingGrade) error {
	r.createdSub, r.createdPending = &sub, &pending
	return nil
}

func (r *fakeRepo) PromotePendingGrades(ctx context.Context) (int64, error) {
	r.promoteCalls++
	return r.promoted, nil
}

type nopMailService struct{ sent []*core.EmailMessage }

func (s *nopMailService) SendMessages(messages ...*core.EmailMessage) {
	s.sent = append(s.sent, messages...)
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(repo Repository) *Service {
	return NewService(repo, &nopMailService{}, nil, nopLogger{})
}

func TestService_SubmitQuiz(t *testing.T) {
	ctx := context.Background()
	student := user.Identity{ID: 7, Role: user.RoleStudent}
	today := time.Now().UTC()

	quizRepo := func() *fakeRepo {
		return &fakeRepo{
			assessment: Assessment{ID: 3, SubjectID: 1, Kind: KindSelfassessable, DueDate: today},
			quiz:       Quiz{ID: 5, AssessmentID: 3},
			questions: []QuizQuestion{
				{ID: 1, Correct: "a", Incorrect1: "x"},
				{ID: 2, Correct: "b", Incorrect1: "y"},
			},
		}
	}

	t.Run("only students", func(t *testing.T) {
		svc := newTestService(quizRepo())
		_, err := svc.SubmitQuiz(ctx, user.Identity{ID: 1, Role: user.RoleTeacher}, NewQuizSubmission{AssessmentID: 3, Answers: []string{"a"}})
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("not a selfassessable", func(t *testing.T) {
		repo := quizRepo()
		repo.assessment.Kind = KindExam
		svc := newTestService(repo)
		_, err := svc.SubmitQuiz(ctx, student, NewQuizSubmission{AssessmentID: 3, Answers: []string{"a"}})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("only on the due date", func(t *testing.T) {
		repo := quizRepo()
		repo.assessment.DueDate = today.Add(48 * time.Hour)
		svc := newTestService(repo)
		_, err := svc.SubmitQuiz(ctx, student, NewQuizSubmission{AssessmentID: 3, Answers: []string{"a"}})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("once per student", func(t *testing.T) {
		repo := quizRepo()
		repo.answered = true
		svc := newTestService(repo)
		_, err := svc.SubmitQuiz(ctx, student, NewQuizSubmission{AssessmentID: 3, Answers: []string{"a"}})
		assert.True(t, core.IsConflict(err))
	})

	t.Run("grades and stages the result", func(t *testing.T) {
		repo := quizRepo()
		svc := newTestService(repo)
		pending, err := svc.SubmitQuiz(ctx, student, NewQuizSubmission{AssessmentID: 3, Answers: []string{"a", "wrong"}})
		require.NoError(t, err)

		assert.Equal(t, 5, pending.QuizID)
		assert.Equal(t, student.ID, pending.StudentID)
		assert.True(t, pending.Grade.Equal(decimal.NewFromInt(5)), "got %s", pending.Grade)

		require.NotNil(t, repo.createdSub)
		assert.Equal(t, "a,wrong", repo.createdSub.Answers)
		require.NotNil(t, repo.createdPending)
		assert.True(t, repo.createdPending.Grade.Equal(pending.Grade))
	})
}

func TestService_DueQuizzes(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{questions: []QuizQuestion{{ID: 1, Question: "q", Correct: "a", Incorrect1: "x"}}}
	svc := newTestService(repo)

	_, err := svc.DueQuizzes(ctx, user.Identity{ID: 1, Role: user.RoleFather}, QuizFilter{})
	assert.True(t, core.IsPermissionDenied(err))

	questions, err := svc.DueQuizzes(ctx, user.Identity{ID: 7, Role: user.RoleStudent}, QuizFilter{})
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.ElementsMatch(t, []string{"a", "x"}, questions[0].Options)
}

func TestService_PendingGrades(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeRepo{})

	for _, role := range []user.Role{user.RoleStudent, user.RolePreceptor, user.RoleFather} {
		_, err := svc.PendingGrades(ctx, user.Identity{ID: 1, Role: role}, QuizFilter{})
		assert.Truef(t, core.IsPermissionDenied(err), "role %s should be denied", role)
	}
}

func TestService_PromotePendingGrades(t *testing.T) {
	repo := &fakeRepo{promoted: 3}
	svc := newTestService(repo)

	require.NoError(t, svc.PromotePendingGrades(context.Background()))
	assert.Equal(t, 1, repo.promoteCalls)
}
