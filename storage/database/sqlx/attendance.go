package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/attendance"
	"github.com/escolarhq/escolar/core/user"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) FilterAssistances(ctx context.Context, ident user.Identity, filter attendance.AssistanceFilter) ([]attendance.Assistance, error) {
	q := newQuery("SELECT DISTINCT a.* FROM assistance a")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		// attendance is off limits to teachers
		q.Where(denyAll)
	case ident.IsStudent():
		q.Where("a.student_id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Push(" JOIN users u ON a.student_id = u.id JOIN courses c ON u.course_id = c.id").
			Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN families f ON f.student_id = a.student_id").Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.ID.Valid {
		q.Where("a.id = ?", filter.ID.Int)
	}
	if filter.StudentID.Valid {
		q.Where("a.student_id = ?", filter.StudentID.Int)
	}
	if filter.Presence.Valid {
		q.Where("a.presence = ?", filter.Presence.Bool)
	}
	if filter.Date.Valid {
		q.Where("a.date = ?", filter.Date.Time)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building assistance query")
	}
	assistances := make([]attendance.Assistance, 0)
	if err = repo.db.SelectContext(ctx, &assistances, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering assistance")
	}
	return assistances, nil
}

func (repo attendanceRepository) FilterSanctions(ctx context.Context, ident user.Identity, filter attendance.SanctionFilter) ([]attendance.Sanction, error) {
	q := newQuery("SELECT DISTINCT ds.* FROM disciplinary_sanctions ds")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		// sanctions are off limits to teachers
		q.Where(denyAll)
	case ident.IsStudent():
		q.Where("ds.student_id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Push(" JOIN users u ON ds.student_id = u.id JOIN courses c ON u.course_id = c.id").
			Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN families f ON f.student_id = ds.student_id").Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.ID.Valid {
		q.Where("ds.id = ?", filter.ID.Int)
	}
	if filter.StudentID.Valid {
		q.Where("ds.student_id = ?", filter.StudentID.Int)
	}
	if filter.Kind.Valid {
		q.Where("ds.sanction_type = ?", filter.Kind.String)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building sanctions query")
	}
	sanctions := make([]attendance.Sanction, 0)
	if err = repo.db.SelectContext(ctx, &sanctions, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering sanctions")
	}
	return sanctions, nil
}

func (repo attendanceRepository) PreceptorOverseesStudent(ctx context.Context, preceptorID, studentID int) (bool, error) {
	var oversees bool
	err := repo.db.GetContext(ctx, &oversees,
		`SELECT EXISTS (SELECT 1 FROM users u
		 JOIN courses c ON u.course_id = c.id
		 WHERE u.id = $1 AND c.preceptor_id = $2)`, studentID, preceptorID)
	if err != nil {
		return false, errors.Wrap(err, "checking preceptor oversight")
	}
	return oversees, nil
}

func (repo attendanceRepository) PreceptorOverseesAssistance(ctx context.Context, preceptorID, assistanceID int) (bool, error) {
	var oversees bool
	err := repo.db.GetContext(ctx, &oversees,
		`SELECT EXISTS (SELECT 1 FROM assistance a
		 JOIN users u ON a.student_id = u.id
		 JOIN courses c ON u.course_id = c.id
		 WHERE a.id = $1 AND c.preceptor_id = $2)`, assistanceID, preceptorID)
	if err != nil {
		return false, errors.Wrap(err, "checking assistance oversight")
	}
	return oversees, nil
}

func (repo attendanceRepository) PreceptorOverseesSanction(ctx context.Context, preceptorID, sanctionID int) (bool, error) {
	var oversees bool
	err := repo.db.GetContext(ctx, &oversees,
		`SELECT EXISTS (SELECT 1 FROM disciplinary_sanctions ds
		 JOIN users u ON ds.student_id = u.id
		 JOIN courses c ON u.course_id = c.id
		 WHERE ds.id = $1 AND c.preceptor_id = $2)`, sanctionID, preceptorID)
	if err != nil {
		return false, errors.Wrap(err, "checking sanction oversight")
	}
	return oversees, nil
}

func (repo attendanceRepository) CreateAssistance(ctx context.Context, a attendance.Assistance) (attendance.Assistance, error) {
	err := repo.db.QueryRowxContext(ctx,
		"INSERT INTO assistance (student_id, presence, date) VALUES ($1, $2, $3) RETURNING id",
		a.StudentID, a.Presence, a.Date,
	).Scan(&a.ID)
	if err != nil {
		return attendance.Assistance{}, errors.Wrap(err, "inserting assistance")
	}
	return a, nil
}

func (repo attendanceRepository) UpdateAssistance(ctx context.Context, id int, ua attendance.UpdateAssistance) error {
	p := newPatch()
	if ua.StudentID.Valid {
		p.Set("student_id", ua.StudentID.Int)
	}
	if ua.Presence.Valid {
		p.Set("presence", ua.Presence.Bool)
	}
	if ua.Date.Valid {
		p.Set("date", ua.Date.Time)
	}
	if p.Empty() {
		return nil
	}

	query, args := p.Query("assistance", "id", id)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating assistance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrAssistanceNotFound
	}
	return nil
}

func (repo attendanceRepository) DeleteAssistance(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM assistance WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting assistance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrAssistanceNotFound
	}
	return nil
}

func (repo attendanceRepository) CreateSanction(ctx context.Context, s attendance.Sanction) (attendance.Sanction, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO disciplinary_sanctions (student_id, sanction_type, quantity, description, date)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.StudentID, s.Kind, s.Quantity, s.Description, s.Date,
	).Scan(&s.ID)
	if err != nil {
		return attendance.Sanction{}, errors.Wrap(err, "inserting sanction")
	}
	return s, nil
}

func (repo attendanceRepository) UpdateSanction(ctx context.Context, id int, us attendance.UpdateSanction) error {
	p := newPatch()
	if us.StudentID.Valid {
		p.Set("student_id", us.StudentID.Int)
	}
	if us.Kind.Valid {
		p.Set("sanction_type", us.Kind.String)
	}
	if us.Quantity.Valid {
		p.Set("quantity", us.Quantity.Int)
	}
	if us.Description.Valid {
		p.Set("description", us.Description.String)
	}
	if us.Date.Valid {
		p.Set("date", us.Date.Time)
	}
	if p.Empty() {
		return nil
	}

	query, args := p.Query("disciplinary_sanctions", "id", id)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating sanction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrSanctionNotFound
	}
	return nil
}

func (repo attendanceRepository) DeleteSanction(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM disciplinary_sanctions WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting sanction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrSanctionNotFound
	}
	return nil
}
