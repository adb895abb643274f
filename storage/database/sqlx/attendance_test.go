package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core/attendance"
	"github.com/escolarhq/escolar/core/user"
)

func TestAttendanceRepository_FilterAssistances(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "student_id", "presence", "date"}

	t.Run("teachers are denied outright", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAttendanceRepository(db)

		mock.ExpectQuery(matchSQL("SELECT DISTINCT a.* FROM assistance a", "WHERE 1=2")).
			WillReturnRows(sqlmock.NewRows(cols))

		records, err := repo.FilterAssistances(ctx, user.Identity{ID: 2, Role: user.RoleTeacher}, attendance.AssistanceFilter{})
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("preceptor scope with filters", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAttendanceRepository(db)

		mock.ExpectQuery(matchSQL(
			"JOIN users u ON a.student_id = u.id JOIN courses c ON u.course_id = c.id",
			"WHERE c.preceptor_id = $1", "AND a.presence = $2",
		)).
			WithArgs(4, false).
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.FilterAssistances(ctx, user.Identity{ID: 4, Role: user.RolePreceptor}, attendance.AssistanceFilter{
			Presence: null.BoolFrom(false),
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAttendanceRepository_FilterSanctions(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "student_id", "sanction_type", "quantity", "description", "date"}

	t.Run("student sees own sanctions", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAttendanceRepository(db)

		mock.ExpectQuery(matchSQL("FROM disciplinary_sanctions ds", "WHERE ds.student_id = $1")).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 3, "warning", 1, nil, time.Now()))

		sanctions, err := repo.FilterSanctions(ctx, user.Identity{ID: 3, Role: user.RoleStudent}, attendance.SanctionFilter{})
		require.NoError(t, err)
		require.Len(t, sanctions, 1)
		assert.Equal(t, "warning", sanctions[0].Kind)
	})

	t.Run("teachers are denied outright", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAttendanceRepository(db)

		mock.ExpectQuery(matchSQL("FROM disciplinary_sanctions ds", "WHERE 1=2")).
			WillReturnRows(sqlmock.NewRows(cols))

		sanctions, err := repo.FilterSanctions(ctx, user.Identity{ID: 2, Role: user.RoleTeacher}, attendance.SanctionFilter{})
		require.NoError(t, err)
		assert.Empty(t, sanctions)
	})
}
