package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/grade"
	"github.com/escolarhq/escolar/core/user"
)

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo gradeRepository) Filter(ctx context.Context, ident user.Identity, filter grade.QueryFilter) ([]grade.Grade, error) {
	q := newQuery("SELECT g.* FROM grades g")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Push(" JOIN subjects s ON g.subject_id = s.id").Where("s.teacher_id = ?", ident.ID)
	case ident.IsStudent():
		q.Where("g.student_id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Push(" JOIN subjects s ON g.subject_id = s.id JOIN courses c ON s.course_id = c.id").
			Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN families f ON g.student_id = f.student_id").Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.SubjectID.Valid {
		q.Where("g.subject_id = ?", filter.SubjectID.Int)
	}
	if filter.StudentID.Valid {
		q.Where("g.student_id = ?", filter.StudentID.Int)
	}
	if filter.Description.Valid {
		q.Where("g.description = ?", filter.Description.String)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building grades query")
	}
	grades := make([]grade.Grade, 0)
	if err = repo.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering grades")
	}
	return grades, nil
}

func (repo gradeRepository) TeacherOwnsSubject(ctx context.Context, teacherID, subjectID int) (bool, error) {
	var owns bool
	err := repo.db.GetContext(ctx, &owns,
		"SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1 AND teacher_id = $2)", subjectID, teacherID)
	if err != nil {
		return false, errors.Wrap(err, "checking subject ownership")
	}
	return owns, nil
}

func (repo gradeRepository) TeacherOwnsGrade(ctx context.Context, teacherID, gradeID int) (bool, error) {
	var owns bool
	err := repo.db.GetContext(ctx, &owns,
		`SELECT EXISTS (SELECT 1 FROM grades g
		 JOIN subjects s ON s.id = g.subject_id
		 WHERE g.id = $1 AND s.teacher_id = $2)`, gradeID, teacherID)
	if err != nil {
		return false, errors.Wrap(err, "checking grade ownership")
	}
	return owns, nil
}

func (repo gradeRepository) SubjectCourse(ctx context.Context, subjectID int) (int, error) {
	var courseID int
	err := repo.db.GetContext(ctx, &courseID, "SELECT course_id FROM subjects WHERE id = $1", subjectID)
	if err == sql.ErrNoRows {
		return 0, grade.ErrNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "getting subject course")
	}
	return courseID, nil
}

func (repo gradeRepository) StudentInCourse(ctx context.Context, studentID, courseID int) (bool, error) {
	var in bool
	err := repo.db.GetContext(ctx, &in,
		"SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND course_id = $2)", studentID, courseID)
	if err != nil {
		return false, errors.Wrap(err, "checking student course")
	}
	return in, nil
}

func (repo gradeRepository) AssessmentInSubject(ctx context.Context, assessmentID, subjectID int) (bool, error) {
	var in bool
	err := repo.db.GetContext(ctx, &in,
		"SELECT EXISTS (SELECT 1 FROM assessments WHERE id = $1 AND subject_id = $2)", assessmentID, subjectID)
	if err != nil {
		return false, errors.Wrap(err, "checking assessment subject")
	}
	return in, nil
}

func (repo gradeRepository) GradeExists(ctx context.Context, assessmentID, studentID int) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM grades WHERE assessment_id = $1 AND student_id = $2)", assessmentID, studentID)
	if err != nil {
		return false, errors.Wrap(err, "checking grade existence")
	}
	return exists, nil
}

func (repo gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO grades (description, grade, student_id, subject_id, assessment_id, kind)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		g.Description, g.Grade, g.StudentID, g.SubjectID, g.AssessmentID, g.Kind,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo gradeRepository) UpdateGrade(ctx context.Context, id int, ug grade.UpdateGrade) error {
	p := newPatch()
	if ug.Description.Valid {
		p.Set("description", ug.Description.String)
	}
	if ug.Grade.Valid {
		p.Set("grade", ug.Grade.Decimal)
	}
	if ug.StudentID.Valid {
		p.Set("student_id", ug.StudentID.Int)
	}
	if ug.SubjectID.Valid {
		p.Set("subject_id", ug.SubjectID.Int)
	}
	if ug.AssessmentID.Valid {
		p.Set("assessment_id", ug.AssessmentID.Int)
	}
	if ug.Kind.Valid {
		p.Set("kind", ug.Kind.String)
	}
	if p.Empty() {
		return nil
	}

	query, args := p.Query("grades", "id", id)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return grade.ErrNotFound
	}
	return nil
}

func (repo gradeRepository) DeleteGrade(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM grades WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return grade.ErrNotFound
	}
	return nil
}

func (repo gradeRepository) GetSubjectName(ctx context.Context, subjectID int) (string, error) {
	return getSubjectName(ctx, repo.db, subjectID)
}

func (repo gradeRepository) GetSenderName(ctx context.Context, userID int) (string, error) {
	return getFullName(ctx, repo.db, userID)
}

func (repo gradeRepository) GetStudentRecipient(ctx context.Context, studentID int) (user.Recipient, error) {
	var recipient user.Recipient
	err := repo.db.GetContext(ctx, &recipient,
		`SELECT u.email, pd.full_name FROM users u
		 JOIN personal_data pd ON pd.user_id = u.id
		 WHERE u.id = $1`, studentID)
	if err == sql.ErrNoRows {
		return user.Recipient{}, user.ErrNotFound
	}
	if err != nil {
		return user.Recipient{}, errors.Wrap(err, "getting student recipient")
	}
	return recipient, nil
}
