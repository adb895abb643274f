package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core/assessment"
	"github.com/escolarhq/escolar/core/user"
)

type assessmentRepository struct {
	db *sqlx.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *sqlx.DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func (repo assessmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return assessment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// visibleSubjectIDs pre-fetches the subject IDs a non-teaching role may see.
// An empty result short-circuits the whole listing to the empty set.
func (repo assessmentRepository) visibleSubjectIDs(ctx context.Context, ident user.Identity) ([]int, error) {
	var query string
	switch {
	case ident.IsStudent():
		query = `SELECT s.id FROM subjects s
			JOIN users u ON s.course_id = u.course_id
			WHERE u.id = $1`
	case ident.IsPreceptor():
		query = `SELECT s.id FROM subjects s
			JOIN courses c ON s.course_id = c.id
			WHERE c.preceptor_id = $1`
	case ident.IsFather():
		query = `SELECT s.id FROM subjects s
			JOIN users u ON s.course_id = u.course_id
			JOIN families f ON f.student_id = u.id
			WHERE f.father_id = $1`
	default:
		return nil, nil
	}

	ids := make([]int, 0)
	if err := repo.db.SelectContext(ctx, &ids, query, ident.ID); err != nil {
		return nil, errors.Wrap(err, "listing visible subjects")
	}
	return ids, nil
}

func (repo assessmentRepository) Filter(ctx context.Context, ident user.Identity, filter assessment.QueryFilter) ([]assessment.Assessment, error) {
	q := newQuery("SELECT a.* FROM assessments a JOIN subjects s ON a.subject_id = s.id")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Where("s.teacher_id = ?", ident.ID)
	default:
		ids, err := repo.visibleSubjectIDs(ctx, ident)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []assessment.Assessment{}, nil
		}
		q.Where("a.subject_id IN (?)", ids)
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
	if filter.Task.Valid {
		q.Where("a.task ILIKE ?", contains(filter.Task.String))
	}
	if filter.Due.Valid && filter.Due.Bool {
		q.Where("a.due_date >= now()")
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building assessments query")
	}
	assessments := make([]assessment.Assessment, 0)
	if err = repo.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering assessments")
	}
	return assessments, nil
}

func (repo assessmentRepository) GetAssessment(ctx context.Context, id int) (assessment.Assessment, error) {
	var a assessment.Assessment
	err := repo.db.GetContext(ctx, &a, "SELECT * FROM assessments WHERE id = $1", id)
	if err != nil {
		return assessment.Assessment{}, repo.trapNoRowsErr(err, "getting assessment")
	}
	return a, nil
}

func (repo assessmentRepository) TeacherOwnsSubject(ctx context.Context, teacherID, subjectID int) (bool, error) {
	var owns bool
	err := repo.db.GetContext(ctx, &owns,
		"SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1 AND teacher_id = $2)", subjectID, teacherID)
	if err != nil {
		return false, errors.Wrap(err, "checking subject ownership")
	}
	return owns, nil
}

func (repo assessmentRepository) TeacherOwnsAssessment(ctx context.Context, teacherID, assessmentID int) (bool, error) {
	var owns bool
	err := repo.db.GetContext(ctx, &owns,
		`SELECT EXISTS (SELECT 1 FROM assessments a
		 JOIN subjects s ON s.id = a.subject_id
		 WHERE a.id = $1 AND s.teacher_id = $2)`, assessmentID, teacherID)
	if err != nil {
		return false, errors.Wrap(err, "checking assessment ownership")
	}
	return owns, nil
}

func (repo assessmentRepository) StudentCourse(ctx context.Context, studentID int) (int, error) {
	var courseID sql.NullInt64
	err := repo.db.GetContext(ctx, &courseID, "SELECT course_id FROM users WHERE id = $1", studentID)
	if err != nil {
		return 0, repo.trapNoRowsErr(err, "getting student course")
	}
	return int(courseID.Int64), nil
}

func (repo assessmentRepository) SubjectCourse(ctx context.Context, subjectID int) (int, error) {
	var courseID int
	err := repo.db.GetContext(ctx, &courseID, "SELECT course_id FROM subjects WHERE id = $1", subjectID)
	if err != nil {
		return 0, repo.trapNoRowsErr(err, "getting subject course")
	}
	return courseID, nil
}

func (repo assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO assessments (subject_id, task, due_date, kind)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		a.SubjectID, a.Task, a.DueDate, a.Kind,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	return a, nil
}

func (repo assessmentRepository) CreateQuizAssessment(ctx context.Context, a assessment.Assessment, questions []assessment.QuizQuestion) (assessment.Assessment, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO assessments (subject_id, task, due_date, kind)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		a.SubjectID, a.Task, a.DueDate, a.Kind,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "inserting assessment")
	}

	var quizID int
	err = tx.QueryRowxContext(ctx,
		"INSERT INTO selfassessables (assessment_id) VALUES ($1) RETURNING id", a.ID,
	).Scan(&quizID)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "inserting selfassessable")
	}

	for _, question := range questions {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO selfassessable_tasks (selfassessable_id, question, correct, incorrect1, incorrect2, incorrect3, incorrect4)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			quizID, question.Question, question.Correct, question.Incorrect1,
			question.Incorrect2, question.Incorrect3, question.Incorrect4,
		); err != nil {
			return assessment.Assessment{}, errors.Wrap(err, "inserting selfassessable question")
		}
	}

	if err = tx.Commit(); err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "committing tx")
	}
	return a, nil
}

func (repo assessmentRepository) UpdateAssessment(ctx context.Context, id int, ua assessment.UpdateAssessment) error {
	p := newPatch()
	if ua.SubjectID.Valid {
		p.Set("subject_id", ua.SubjectID.Int)
	}
	if ua.Task.Valid {
		p.Set("task", ua.Task.String)
	}
	if ua.DueDate.Valid {
		p.Set("due_date", ua.DueDate.Time)
	}
	if ua.Kind.Valid {
		p.Set("kind", ua.Kind.String)
	}
	if p.Empty() {
		return nil
	}

	query, args := p.Query("assessments", "id", id)
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.ErrNotFound
	}
	return nil
}

func (repo assessmentRepository) DeleteAssessment(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM assessments WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.ErrNotFound
	}
	return nil
}

func (repo assessmentRepository) GetQuizByAssessment(ctx context.Context, assessmentID int) (assessment.Quiz, error) {
	var quiz assessment.Quiz
	err := repo.db.GetContext(ctx, &quiz, "SELECT * FROM selfassessables WHERE assessment_id = $1", assessmentID)
	if err != nil {
		return assessment.Quiz{}, repo.trapNoRowsErr(err, "getting selfassessable")
	}
	return quiz, nil
}

func (repo assessmentRepository) FilterDueQuizQuestions(ctx context.Context, studentID int, filter assessment.QuizFilter) ([]assessment.QuizQuestion, error) {
	q := newQuery(`SELECT st.* FROM selfassessable_tasks st
		JOIN selfassessables sa ON sa.id = st.selfassessable_id
		JOIN assessments a ON a.id = sa.assessment_id
		JOIN subjects sj ON sj.id = a.subject_id
		JOIN users u ON u.course_id = sj.course_id`)
	q.Where("a.due_date::date = CURRENT_DATE")
	q.Where("u.id = ?", studentID)
	if filter.AssessmentID.Valid {
		q.Where("sa.assessment_id = ?", filter.AssessmentID.Int)
	}
	q.Push(" ORDER BY st.id")

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building due questions query")
	}
	questions := make([]assessment.QuizQuestion, 0)
	if err = repo.db.SelectContext(ctx, &questions, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering due questions")
	}
	return questions, nil
}

func (repo assessmentRepository) FilterQuizSubmissions(ctx context.Context, studentID int, filter assessment.QuizFilter) ([]assessment.QuizSubmission, error) {
	q := newQuery("SELECT * FROM selfassessable_submissions")
	q.Where("student_id = ?", studentID)
	if filter.AssessmentID.Valid {
		q.Where("selfassessable_id = (SELECT id FROM selfassessables WHERE assessment_id = ?)", filter.AssessmentID.Int)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building submissions query")
	}
	subs := make([]assessment.QuizSubmission, 0)
	if err = repo.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering submissions")
	}
	return subs, nil
}

func (repo assessmentRepository) FilterPendingGrades(ctx context.Context, ident user.Identity, filter assessment.QuizFilter) ([]assessment.PendingGrade, error) {
	q := newQuery("SELECT pg.* FROM selfassessable_pending_grades pg")

	switch {
	case ident.IsAdmin():
		q.Where(allowAll)
	case ident.IsTeacher():
		q.Push(` JOIN selfassessables sa ON sa.id = pg.selfassessable_id
			JOIN assessments a ON a.id = sa.assessment_id
			JOIN subjects sj ON sj.id = a.subject_id`).
			Where("sj.teacher_id = ?", ident.ID)
	default:
		q.Where(denyAll)
	}

	if filter.AssessmentID.Valid {
		q.Where("pg.selfassessable_id = (SELECT id FROM selfassessables WHERE assessment_id = ?)", filter.AssessmentID.Int)
	}

	query, args, err := q.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building pending grades query")
	}
	grades := make([]assessment.PendingGrade, 0)
	if err = repo.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering pending grades")
	}
	return grades, nil
}

func (repo assessmentRepository) QuizAnswered(ctx context.Context, studentID, quizID int) (bool, error) {
	var answered bool
	err := repo.db.GetContext(ctx, &answered,
		"SELECT EXISTS (SELECT 1 FROM selfassessable_submissions WHERE student_id = $1 AND selfassessable_id = $2)",
		studentID, quizID)
	if err != nil {
		return false, errors.Wrap(err, "checking selfassessable submission")
	}
	return answered, nil
}

func (repo assessmentRepository) CreateQuizSubmission(ctx context.Context, sub assessment.QuizSubmission, pending assessment.PendingGrade) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO selfassessable_submissions (selfassessable_id, student_id, answers) VALUES ($1, $2, $3)",
		sub.QuizID, sub.StudentID, sub.Answers,
	); err != nil {
		return errors.Wrap(err, "inserting submission")
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO selfassessable_pending_grades (selfassessable_id, student_id, grade) VALUES ($1, $2, $3)",
		pending.QuizID, pending.StudentID, pending.Grade,
	); err != nil {
		return errors.Wrap(err, "inserting pending grade")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing tx")
	}
	return nil
}

func (repo assessmentRepository) HomeworkAnswered(ctx context.Context, studentID, taskID int) (bool, error) {
	var answered bool
	err := repo.db.GetContext(ctx, &answered,
		"SELECT EXISTS (SELECT 1 FROM homework_submissions WHERE student_id = $1 AND task_id = $2)",
		studentID, taskID)
	if err != nil {
		return false, errors.Wrap(err, "checking homework submission")
	}
	return answered, nil
}

func (repo assessmentRepository) CreateHomeworkSubmission(ctx context.Context, hs assessment.HomeworkSubmission) (assessment.HomeworkSubmission, error) {
	err := repo.db.QueryRowxContext(ctx,
		"INSERT INTO homework_submissions (path, student_id, task_id) VALUES ($1, $2, $3) RETURNING id",
		hs.Path, hs.StudentID, hs.TaskID,
	).Scan(&hs.ID)
	if err != nil {
		return assessment.HomeworkSubmission{}, errors.Wrap(err, "inserting homework submission")
	}
	return hs, nil
}

func (repo assessmentRepository) GetHomeworkSubmission(ctx context.Context, id int) (assessment.HomeworkSubmission, error) {
	var hs assessment.HomeworkSubmission
	err := repo.db.GetContext(ctx, &hs, "SELECT * FROM homework_submissions WHERE id = $1", id)
	if err != nil {
		return assessment.HomeworkSubmission{}, repo.trapNoRowsErr(err, "getting homework submission")
	}
	return hs, nil
}

func (repo assessmentRepository) DeleteHomeworkSubmission(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM homework_submissions WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting homework submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.ErrNotFound
	}
	return nil
}

// PromotePendingGrades turns staged grades of past-due selfassessables into
// permanent grade rows and drops the staged rows, in one transaction.
func (repo assessmentRepository) PromotePendingGrades(ctx context.Context) (int64, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO grades (description, grade, student_id, subject_id, assessment_id, kind)
		 SELECT 'Autoevaluación cerrada', pg.grade, pg.student_id, a.subject_id, a.id, 'numerical'
		 FROM selfassessable_pending_grades pg
		 JOIN selfassessables sa ON sa.id = pg.selfassessable_id
		 JOIN assessments a ON a.id = sa.assessment_id
		 WHERE a.due_date::date < CURRENT_DATE`)
	if err != nil {
		return 0, errors.Wrap(err, "promoting pending grades")
	}
	promoted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting promoted grades")
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM selfassessable_pending_grades pg
		 USING selfassessables sa, assessments a
		 WHERE sa.id = pg.selfassessable_id AND a.id = sa.assessment_id
		   AND a.due_date::date < CURRENT_DATE`); err != nil {
		return 0, errors.Wrap(err, "clearing promoted grades")
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing tx")
	}
	return promoted, nil
}

func (repo assessmentRepository) GetSubjectName(ctx context.Context, subjectID int) (string, error) {
	return getSubjectName(ctx, repo.db, subjectID)
}

func (repo assessmentRepository) SubjectRecipients(ctx context.Context, subjectID int) ([]user.Recipient, error) {
	return subjectRecipients(ctx, repo.db, subjectID)
}

func (repo assessmentRepository) GetSenderName(ctx context.Context, userID int) (string, error) {
	return getFullName(ctx, repo.db, userID)
}
