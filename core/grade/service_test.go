package grade

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

type fakeRepo struct {
	Repository

	ownsSubject bool
	ownsGrade   bool
	inCourse    bool
	inSubject   bool
	exists      bool

	created *Grade
	deleted int
}

func (r *fakeRepo) TeacherOwnsSubject(ctx context.Context, teacherID, subjectID int) (bool, error) {
	return r.ownsSubject, nil
}

func (r *fakeRepo) TeacherOwnsGrade(ctx context.Context, teacherID, gradeID int) (bool, error) {
	return r.ownsGrade, nil
}

func (r *fakeRepo) SubjectCourse(ctx context.Context, subjectID int) (int, error) { return 2, nil }

func (r *fakeRepo) StudentInCourse(ctx context.Context, studentID, courseID int) (bool, error) {
	return r.inCourse, nil
}

func (r *fakeRepo) AssessmentInSubject(ctx context.Context, assessmentID, subjectID int) (bool, error) {
	return r.inSubject, nil
}

func (r *fakeRepo) GradeExists(ctx context.Context, assessmentID, studentID int) (bool, error) {
	return r.exists, nil
}

func (r *fakeRepo) CreateGrade(ctx context.Context, g Grade) (Grade, error) {
	g.ID = 1
	r.created = &g
	return g, nil
}

func (r *fakeRepo) DeleteGrade(ctx context.Context, id int) error {
	r.deleted = id
	return nil
}

func (r *fakeRepo) GetStudentRecipient(ctx context.Context, studentID int) (user.Recipient, error) {
	return user.Recipient{Email: "ana@example.com", FullName: "Ana"}, nil
}

func (r *fakeRepo) GetSenderName(ctx context.Context, userID int) (string, error) {
	return "Prof. Díaz", nil
}

func (r *fakeRepo) GetSubjectName(ctx context.Context, subjectID int) (string, error) {
	return "Matemática", nil
}

type recordingMailService struct{ sent []*core.EmailMessage }

func (s *recordingMailService) SendMessages(messages ...*core.EmailMessage) {
	s.sent = append(s.sent, messages...)
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	ng := NewGrade{
		SubjectID:    3,
		AssessmentID: null.IntFrom(7),
		StudentID:    5,
		Kind:         KindNumerical,
		Grade:        decimal.RequireFromString("8.5"),
	}

	t.Run("teacher of the subject may grade", func(t *testing.T) {
		repo := &fakeRepo{ownsSubject: true, inCourse: true, inSubject: true}
		mailSvc := &recordingMailService{}
		svc := NewService(repo, mailSvc, nopLogger{})

		g, err := svc.Create(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, ng)
		require.NoError(t, err)
		assert.Equal(t, 1, g.ID)
		assert.Equal(t, 5, g.StudentID)

		require.Len(t, mailSvc.sent, 1)
		assert.Equal(t, "Nueva nota en la materia: Matemática", mailSvc.sent[0].Subject)
		assert.Equal(t, "grade-submitted", mailSvc.sent[0].TemplateName)
	})

	t.Run("teacher of another subject may not", func(t *testing.T) {
		svc := NewService(&fakeRepo{inCourse: true, inSubject: true}, &recordingMailService{}, nopLogger{})
		_, err := svc.Create(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, ng)
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("other roles are denied", func(t *testing.T) {
		svc := NewService(&fakeRepo{inCourse: true, inSubject: true}, &recordingMailService{}, nopLogger{})
		for _, role := range []user.Role{user.RoleStudent, user.RolePreceptor, user.RoleFather} {
			_, err := svc.Create(ctx, user.Identity{ID: 9, Role: role}, ng)
			assert.Truef(t, core.IsPermissionDenied(err), "role %s should be denied", role)
		}
	})

	t.Run("student outside the subject's course", func(t *testing.T) {
		svc := NewService(&fakeRepo{ownsSubject: true, inSubject: true}, &recordingMailService{}, nopLogger{})
		_, err := svc.Create(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, ng)
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("assessment from another subject", func(t *testing.T) {
		svc := NewService(&fakeRepo{ownsSubject: true, inCourse: true}, &recordingMailService{}, nopLogger{})
		_, err := svc.Create(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, ng)
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("duplicate grade conflicts", func(t *testing.T) {
		svc := NewService(&fakeRepo{ownsSubject: true, inCourse: true, inSubject: true, exists: true}, &recordingMailService{}, nopLogger{})
		_, err := svc.Create(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, ng)
		assert.True(t, core.IsConflict(err))
	})

	t.Run("no assessment skips the duplicate guard", func(t *testing.T) {
		free := ng
		free.AssessmentID = null.Int{}
		repo := &fakeRepo{ownsSubject: true, inCourse: true, exists: true}
		svc := NewService(repo, &recordingMailService{}, nopLogger{})

		g, err := svc.Create(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, free)
		require.NoError(t, err)
		assert.False(t, g.AssessmentID.Valid)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("owning teacher may delete", func(t *testing.T) {
		repo := &fakeRepo{ownsGrade: true}
		svc := NewService(repo, &recordingMailService{}, nopLogger{})
		require.NoError(t, svc.Delete(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, 4))
		assert.Equal(t, 4, repo.deleted)
	})

	t.Run("non-owner may not", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, &recordingMailService{}, nopLogger{})
		err := svc.Delete(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, 4)
		assert.True(t, core.IsPermissionDenied(err))
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeRepo{ownsGrade: true}, &recordingMailService{}, nopLogger{})

	t.Run("empty patch", func(t *testing.T) {
		err := svc.Update(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, 4, UpdateGrade{})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := svc.Update(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, 4, UpdateGrade{Kind: null.StringFrom("vibes")})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}
