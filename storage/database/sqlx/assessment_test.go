package sqlxrepos

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarhq/escolar/core/assessment"
	"github.com/escolarhq/escolar/core/user"
)

func TestAssessmentRepository_Filter(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "subject_id", "task", "due_date", "created_at", "kind"}

	t.Run("teacher scoped to own subjects", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAssessmentRepository(db)

		mock.ExpectQuery(matchSQL("SELECT a.* FROM assessments a JOIN subjects s", "WHERE s.teacher_id = $1")).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.Filter(ctx, user.Identity{ID: 2, Role: user.RoleTeacher}, assessment.QueryFilter{})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("student scope becomes an IN list", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAssessmentRepository(db)

		mock.ExpectQuery(matchSQL("SELECT s.id FROM subjects s", "JOIN users u ON s.course_id = u.course_id", "WHERE u.id = $1")).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(8))
		mock.ExpectQuery(matchSQL("WHERE a.subject_id IN ($1, $2)")).
			WithArgs(4, 8).
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.Filter(ctx, user.Identity{ID: 3, Role: user.RoleStudent}, assessment.QueryFilter{})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("father with no visible subjects short-circuits", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAssessmentRepository(db)

		mock.ExpectQuery(matchSQL("SELECT s.id FROM subjects s", "JOIN families f ON f.student_id = u.id", "WHERE f.father_id = $1")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		assessments, err := repo.Filter(ctx, user.Identity{ID: 5, Role: user.RoleFather}, assessment.QueryFilter{})
		require.NoError(t, err)
		assert.Empty(t, assessments)
		// the main listing query must never run
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAssessmentRepository_PromotePendingGrades(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewAssessmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(matchSQL(
		"INSERT INTO grades (description, grade, student_id, subject_id, assessment_id, kind)",
		"SELECT 'Autoevaluación cerrada', pg.grade, pg.student_id, a.subject_id, a.id, 'numerical'",
		"WHERE a.due_date::date < CURRENT_DATE",
	)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(matchSQL(
		"DELETE FROM selfassessable_pending_grades pg",
		"a.due_date::date < CURRENT_DATE",
	)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	promoted, err := repo.PromotePendingGrades(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessmentRepository_CreateQuizAssessment(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewAssessmentRepository(db)

	a := assessment.Assessment{SubjectID: 1, Task: "unit quiz", Kind: assessment.KindSelfassessable}
	questions := []assessment.QuizQuestion{
		{Question: "q1", Correct: "a", Incorrect1: "x"},
		{Question: "q2", Correct: "b", Incorrect1: "y"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(matchSQL("INSERT INTO assessments", "RETURNING id, created_at")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(9, a.DueDate))
	mock.ExpectQuery(matchSQL("INSERT INTO selfassessables", "RETURNING id")).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	for range questions {
		mock.ExpectExec(matchSQL("INSERT INTO selfassessable_tasks")).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	created, err := repo.CreateQuizAssessment(ctx, a, questions)
	require.NoError(t, err)
	assert.Equal(t, 9, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
