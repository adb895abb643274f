package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/course"
	"github.com/escolarhq/escolar/core/user"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) FilterCourses(ctx context.Context, ident user.Identity) ([]course.Course, error) {
	q := newQuery("SELECT c.* FROM courses c")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Push(" JOIN subjects s ON c.id = s.course_id").Where("s.teacher_id = ?", ident.ID)
	case ident.IsStudent():
		q.Push(" JOIN users u ON c.id = u.course_id").Where("u.id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN users u ON c.id = u.course_id JOIN families f ON f.student_id = u.id").
			Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	// joins may multiply rows
	q.Push(" GROUP BY c.id")

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building courses query")
	}
	courses := make([]course.Course, 0)
	if err = repo.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}
	return courses, nil
}

func (repo courseRepository) FilterTimetables(ctx context.Context, ident user.Identity, filter course.TimetableFilter) ([]course.Timetable, error) {
	q := newQuery(`SELECT DISTINCT t.* FROM timetables t
		JOIN subjects s ON s.id = t.subject_id
		JOIN courses c ON t.course_id = c.id`)

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Where("s.teacher_id = ?", ident.ID)
	case ident.IsStudent():
		q.Push(" JOIN users u ON u.course_id = c.id").Where("u.id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN users u ON u.course_id = c.id JOIN families f ON f.student_id = u.id").
			Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.Day.Valid {
		q.Where("t.day = ?", filter.Day.String)
	}
	if filter.SubjectID.Valid {
		q.Where("s.id = ?", filter.SubjectID.Int)
	}
	if filter.TeacherID.Valid {
		q.Where("s.teacher_id = ?", filter.TeacherID.Int)
	}
	if filter.CourseID.Valid {
		q.Where("c.id = ?", filter.CourseID.Int)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building timetables query")
	}
	timetables := make([]course.Timetable, 0)
	if err = repo.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering timetables")
	}
	return timetables, nil
}
