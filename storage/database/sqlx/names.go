package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/user"
)

// Shared lookups used by the notification paths of several repositories.

func getSubjectName(ctx context.Context, db *sqlx.DB, subjectID int) (string, error) {
	var name string
	err := db.GetContext(ctx, &name, "SELECT name FROM subjects WHERE id = $1", subjectID)
	if err != nil {
		return "", errors.Wrap(err, "getting subject name")
	}
	return name, nil
}

func getFullName(ctx context.Context, db *sqlx.DB, userID int) (string, error) {
	var name string
	err := db.GetContext(ctx, &name, "SELECT full_name FROM personal_data WHERE user_id = $1", userID)
	if err != nil {
		return "", errors.Wrap(err, "getting full name")
	}
	return name, nil
}

// subjectRecipients lists the students enrolled in the subject's course.
func subjectRecipients(ctx context.Context, db *sqlx.DB, subjectID int) ([]user.Recipient, error) {
	recipients := make([]user.Recipient, 0)
	err := db.SelectContext(ctx, &recipients,
		`SELECT u.email, pd.full_name FROM users u
		 JOIN personal_data pd ON pd.user_id = u.id
		 JOIN roles r ON r.user_id = u.id AND r.role = 'student'
		 JOIN subjects s ON s.course_id = u.course_id
		 WHERE s.id = $1`, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "listing subject recipients")
	}
	return recipients, nil
}
