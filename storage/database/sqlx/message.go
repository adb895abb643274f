package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/message"
	"github.com/escolarhq/escolar/core/user"
)

type messageRepository struct {
	db *sqlx.DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo messageRepository) Filter(ctx context.Context, ident user.Identity, filter message.QueryFilter) ([]message.Message, error) {
	q := newQuery("SELECT DISTINCT m.* FROM messages m JOIN message_courses mc ON mc.message_id = m.id")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Push(" JOIN subjects s ON mc.course_id = s.course_id").Where("s.teacher_id = ?", ident.ID)
	case ident.IsStudent():
		q.Push(" JOIN users u ON u.course_id = mc.course_id").Where("u.id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Push(" JOIN courses c ON mc.course_id = c.id").Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN users u ON u.course_id = mc.course_id JOIN families f ON f.student_id = u.id").
			Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.CourseID.Valid {
		q.Where("mc.course_id = ?", filter.CourseID.Int)
	}
	if filter.SenderID.Valid {
		q.Where("m.sender_id = ?", filter.SenderID.Int)
	}
	if filter.Title.Valid {
		q.Where("m.title ILIKE ?", contains(filter.Title.String))
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building messages query")
	}
	messages := make([]message.Message, 0)
	if err = repo.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering messages")
	}
	return messages, nil
}

func (repo messageRepository) PreceptorCourses(ctx context.Context, preceptorID int) ([]int, error) {
	ids := make([]int, 0)
	err := repo.db.SelectContext(ctx, &ids, "SELECT id FROM courses WHERE preceptor_id = $1", preceptorID)
	if err != nil {
		return nil, errors.Wrap(err, "listing presided courses")
	}
	return ids, nil
}

func (repo messageRepository) IsSender(ctx context.Context, userID, messageID int) (bool, error) {
	var is bool
	err := repo.db.GetContext(ctx, &is,
		"SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND sender_id = $2)", messageID, userID)
	if err != nil {
		return false, errors.Wrap(err, "checking message sender")
	}
	return is, nil
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message, courseIDs []int) (message.Message, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return message.Message{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowxContext(ctx,
		"INSERT INTO messages (title, message, sender_id) VALUES ($1, $2, $3) RETURNING id, created_at",
		msg.Title, msg.Message, msg.SenderID,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}

	for _, courseID := range courseIDs {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO message_courses (message_id, course_id) VALUES ($1, $2)", msg.ID, courseID,
		); err != nil {
			return message.Message{}, errors.Wrap(err, "inserting message course")
		}
	}

	if err = tx.Commit(); err != nil {
		return message.Message{}, errors.Wrap(err, "committing tx")
	}
	return msg, nil
}

func (repo messageRepository) UpdateMessage(ctx context.Context, id int, um message.UpdateMessage) error {
	p := newPatch()
	if um.Title.Valid {
		p.Set("title", um.Title.String)
	}
	if um.Message.Valid {
		p.Set("message", um.Message.String)
	}
	if p.Empty() {
		return nil
	}

	query, args := p.Query("messages", "id", id)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return message.ErrNotFound
	}
	return nil
}

func (repo messageRepository) DeleteMessage(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return message.ErrNotFound
	}
	return nil
}

func (repo messageRepository) CourseRecipients(ctx context.Context, courseIDs []int) ([]user.Recipient, error) {
	if len(courseIDs) == 0 {
		return []user.Recipient{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT DISTINCT u.email, pd.full_name FROM users u
		 JOIN personal_data pd ON pd.user_id = u.id
		 WHERE u.course_id IN (?)`, courseIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building recipients query")
	}
	recipients := make([]user.Recipient, 0)
	if err = repo.db.SelectContext(ctx, &recipients, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "listing course recipients")
	}
	return recipients, nil
}

func (repo messageRepository) GetSenderName(ctx context.Context, userID int) (string, error) {
	return getFullName(ctx, repo.db, userID)
}
