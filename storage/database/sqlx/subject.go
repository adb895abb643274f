package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/subject"
	"github.com/escolarhq/escolar/core/user"
)

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo subjectRepository) FilterSubjects(ctx context.Context, ident user.Identity, filter subject.QueryFilter) ([]subject.Subject, error) {
	q := newQuery("SELECT DISTINCT s.*, c.name AS course_name FROM subjects s JOIN courses c ON s.course_id = c.id")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Where("s.teacher_id = ?", ident.ID)
	case ident.IsStudent():
		q.Where("s.course_id = (SELECT course_id FROM users WHERE id = ?)", ident.ID)
	case ident.IsPreceptor():
		q.Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN users u ON s.course_id = u.course_id JOIN families f ON f.student_id = u.id").
			Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.SubjectID.Valid {
		q.Where("s.id = ?", filter.SubjectID.Int)
	}
	if filter.CourseID.Valid {
		q.Where("s.course_id = ?", filter.CourseID.Int)
	}
	if filter.TeacherID.Valid {
		q.Where("s.teacher_id = ?", filter.TeacherID.Int)
	}
	if filter.Name.Valid {
		q.Where("s.name ILIKE ?", contains(filter.Name.String))
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building subjects query")
	}
	subjects := make([]subject.Subject, 0)
	if err = repo.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering subjects")
	}
	return subjects, nil
}

func (repo subjectRepository) FilterMessages(ctx context.Context, ident user.Identity, filter subject.MessageFilter) ([]subject.Message, error) {
	q := newQuery("SELECT DISTINCT sm.* FROM subject_messages sm JOIN subjects s ON s.id = sm.subject_id")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Where("s.teacher_id = ?", ident.ID)
	case ident.IsStudent():
		q.Push(" JOIN users u ON u.course_id = s.course_id").Where("u.id = ?", ident.ID)
	case ident.IsPreceptor():
		q.Push(" JOIN courses c ON c.id = s.course_id").Where("c.preceptor_id = ?", ident.ID)
	case ident.IsFather():
		q.Push(" JOIN users u ON u.course_id = s.course_id JOIN families f ON f.student_id = u.id").
			Where("f.father_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.MessageID.Valid {
		q.Where("sm.id = ?", filter.MessageID.Int)
	}
	if filter.SubjectID.Valid {
		q.Where("sm.subject_id = ?", filter.SubjectID.Int)
	}
	if filter.SenderID.Valid {
		q.Where("sm.sender_id = ?", filter.SenderID.Int)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building subject messages query")
	}
	messages := make([]subject.Message, 0)
	if err = repo.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering subject messages")
	}
	return messages, nil
}

func (repo subjectRepository) TeacherOwnsSubject(ctx context.Context, teacherID, subjectID int) (bool, error) {
	var owns bool
	err := repo.db.GetContext(ctx, &owns,
		"SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1 AND teacher_id = $2)", subjectID, teacherID)
	if err != nil {
		return false, errors.Wrap(err, "checking subject ownership")
	}
	return owns, nil
}

func (repo subjectRepository) TeacherOwnsMessage(ctx context.Context, teacherID, messageID int) (bool, error) {
	var owns bool
	err := repo.db.GetContext(ctx, &owns,
		`SELECT EXISTS (SELECT 1 FROM subject_messages sm
		 JOIN subjects s ON s.id = sm.subject_id
		 WHERE sm.id = $1 AND s.teacher_id = $2)`, messageID, teacherID)
	if err != nil {
		return false, errors.Wrap(err, "checking subject message ownership")
	}
	return owns, nil
}

func (repo subjectRepository) CreateMessage(ctx context.Context, msg subject.Message) (subject.Message, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO subject_messages (subject_id, sender_id, title, content, kind)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		msg.SubjectID, msg.SenderID, msg.Title, msg.Content, msg.Kind,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return subject.Message{}, errors.Wrap(err, "inserting subject message")
	}
	return msg, nil
}

func (repo subjectRepository) UpdateMessage(ctx context.Context, id int, um subject.UpdateMessage) error {
	p := newPatch()
	if um.Title.Valid {
		p.Set("title", um.Title.String)
	}
	if um.Content.Valid {
		p.Set("content", um.Content.String)
	}
	if um.Kind.Valid {
		p.Set("kind", um.Kind.String)
	}
	if p.Empty() {
		return nil
	}

	query, args := p.Query("subject_messages", "id", id)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating subject message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subject.ErrNotFound
	}
	return nil
}

// GetMessageFile returns the stored file reference; empty unless the
// message is of kind file.
func (repo subjectRepository) GetMessageFile(ctx context.Context, id int) (string, error) {
	var content string
	err := repo.db.GetContext(ctx, &content,
		"SELECT content FROM subject_messages WHERE id = $1 AND kind = 'file'", id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "getting subject message file")
	}
	return content, nil
}

func (repo subjectRepository) DeleteMessage(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM subject_messages WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting subject message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subject.ErrNotFound
	}
	return nil
}

func (repo subjectRepository) GetSubjectName(ctx context.Context, subjectID int) (string, error) {
	return getSubjectName(ctx, repo.db, subjectID)
}

func (repo subjectRepository) SubjectRecipients(ctx context.Context, subjectID int) ([]user.Recipient, error) {
	return subjectRecipients(ctx, repo.db, subjectID)
}

func (repo subjectRepository) GetSenderName(ctx context.Context, userID int) (string, error) {
	return getFullName(ctx, repo.db, userID)
}
