package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var usr user.User
	err := repo.db.GetContext(ctx, &usr, "SELECT * FROM users WHERE email = $1", email)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by email")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	var usr user.User
	err := repo.db.GetContext(ctx, &usr, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by id")
	}
	return usr, nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, role user.Role, pd user.PersonalData) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowxContext(ctx,
		"INSERT INTO users (email, password_hash, course_id) VALUES ($1, $2, $3) RETURNING id",
		usr.Email, usr.PasswordHash, usr.CourseID,
	).Scan(&usr.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO roles (user_id, role) VALUES ($1, $2)", usr.ID, role,
	); err != nil {
		return user.User{}, errors.Wrap(err, "inserting role")
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO personal_data (user_id, full_name, phone_number, address, birth_date)
		 VALUES ($1, $2, $3, $4, $5)`,
		usr.ID, pd.FullName, pd.PhoneNumber, pd.Address, pd.BirthDate,
	); err != nil {
		return user.User{}, errors.Wrap(err, "inserting personal data")
	}

	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing tx")
	}
	return usr, nil
}

func (repo userRepository) UserHasRole(ctx context.Context, userID int, role user.Role) (bool, error) {
	var has bool
	err := repo.db.GetContext(ctx, &has,
		"SELECT EXISTS (SELECT 1 FROM roles WHERE user_id = $1 AND role = $2)", userID, role)
	if err != nil {
		return false, errors.Wrap(err, "checking user role")
	}
	return has, nil
}

func (repo userRepository) GetUserRoles(ctx context.Context, userID int) ([]user.Role, error) {
	roles := make([]user.Role, 0, 2)
	err := repo.db.SelectContext(ctx, &roles, "SELECT role FROM roles WHERE user_id = $1", userID)
	if err != nil {
		return nil, errors.Wrap(err, "getting user roles")
	}
	return roles, nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, userID int, at time.Time) error {
	if _, err := repo.db.ExecContext(ctx,
		"UPDATE users SET last_login = $1 WHERE id = $2", at, userID,
	); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return nil
}

func (repo userRepository) FilterStudents(ctx context.Context, ident user.Identity, filter user.QueryFilter) ([]user.PublicUser, error) {
	q := newQuery(`SELECT DISTINCT u.id, u.photo, u.course_id FROM users u
		JOIN roles r ON r.user_id = u.id AND r.role = 'student'`)

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Push(" JOIN courses c ON u.course_id = c.id JOIN subjects s ON s.course_id = c.id").
			Where("s.teacher_id = ?", ident.ID)
	case ident.IsStudent():
		q.Where("u.id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Push(" JOIN courses c ON u.course_id = c.id").
			Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN families f ON f.student_id = u.id").
			Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.CourseID.Valid {
		q.Where("u.course_id = ?", filter.CourseID.Int)
	}
	if filter.UserID.Valid {
		q.Where("u.id = ?", filter.UserID.Int)
	}
	if filter.Name.Valid {
		q.Where("EXISTS (SELECT 1 FROM personal_data pd WHERE pd.user_id = u.id AND pd.full_name ILIKE ?)",
			contains(filter.Name.String))
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}
	students := make([]user.PublicUser, 0)
	if err = repo.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	return students, nil
}

func (repo userRepository) GetPersonalData(ctx context.Context, userID int) (user.PersonalData, error) {
	var pd user.PersonalData
	err := repo.db.GetContext(ctx, &pd, "SELECT * FROM personal_data WHERE user_id = $1", userID)
	if err != nil {
		return user.PersonalData{}, repo.trapNoRowsErr(err, "getting personal data")
	}
	return pd, nil
}

func (repo userRepository) FilterPublicPersonalData(ctx context.Context, filter user.QueryFilter) ([]user.PublicPersonalData, error) {
	q := newQuery("SELECT pd.full_name, u.photo FROM personal_data pd JOIN users u ON pd.user_id = u.id")
	if filter.Name.Valid {
		q.Where("pd.full_name ILIKE ?", contains(filter.Name.String))
	}
	if filter.UserID.Valid {
		q.Where("pd.user_id = ?", filter.UserID.Int)
	}
	if filter.CourseID.Valid {
		q.Where("u.course_id = ?", filter.CourseID.Int)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building personal data query")
	}
	data := make([]user.PublicPersonalData, 0)
	if err = repo.db.SelectContext(ctx, &data, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering personal data")
	}
	return data, nil
}

func (repo userRepository) UpdatePersonalData(ctx context.Context, userID int, up user.UpdatePersonalData) error {
	p := newPatch()
	if up.FullName.Valid {
		p.Set("full_name", up.FullName.String)
	}
	if up.PhoneNumber.Valid {
		p.Set("phone_number", up.PhoneNumber.String)
	}
	if up.Address.Valid {
		p.Set("address", up.Address.String)
	}
	if up.BirthDate.Valid {
		p.Set("birth_date", up.BirthDate.Time)
	}
	if p.Empty() {
		return nil
	}

	query, args := p.Query("personal_data", "user_id", userID)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating personal data")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeletePersonalData(ctx context.Context, userID int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM personal_data WHERE user_id = $1", userID)
	if err != nil {
		return errors.Wrap(err, "deleting personal data")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) GetProfilePicture(ctx context.Context, userID int) (string, error) {
	var photo sql.NullString
	err := repo.db.GetContext(ctx, &photo, "SELECT photo FROM users WHERE id = $1", userID)
	if err != nil {
		return "", repo.trapNoRowsErr(err, "getting profile picture")
	}
	return photo.String, nil
}

func (repo userRepository) SetProfilePicture(ctx context.Context, userID int, path string) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET photo = $1 WHERE id = $2", path, userID)
	if err != nil {
		return errors.Wrap(err, "setting profile picture")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) ClearProfilePicture(ctx context.Context, userID int) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET photo = NULL WHERE id = $1", userID)
	if err != nil {
		return errors.Wrap(err, "clearing profile picture")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}
