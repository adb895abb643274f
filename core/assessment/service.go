package assessment

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("assessment not found")
	ErrNotHomework      = errors.New("submissions are only valid for homeworks")
	ErrNotQuiz          = errors.New("submissions are only valid for selfassessables")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrNotDueToday      = errors.New("submission is only allowed on the due date")
)

type (
	Repository interface {
		Filter(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Assessment, error)
		GetAssessment(ctx context.Context, id int) (Assessment, error)

		TeacherOwnsSubject(ctx context.Context, teacherID, subjectID int) (bool, error)
		TeacherOwnsAssessment(ctx context.Context, teacherID, assessmentID int) (bool, error)
		StudentCourse(ctx context.Context, studentID int) (int, error)
		SubjectCourse(ctx context.Context, subjectID int) (int, error)

		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		// CreateQuizAssessment inserts the assessment, its quiz row and the
		// per-question rows in one transaction.
		CreateQuizAssessment(ctx context.Context, a Assessment, questions []QuizQuestion) (Assessment, error)
		UpdateAssessment(ctx context.Context, id int, ua UpdateAssessment) error
		DeleteAssessment(ctx context.Context, id int) error

		GetQuizByAssessment(ctx context.Context, assessmentID int) (Quiz, error)
		// FilterDueQuizQuestions returns the questions of quizzes in the
		// student's course whose assessment is due today.
		FilterDueQuizQuestions(ctx context.Context, studentID int, filter QuizFilter) ([]QuizQuestion, error)
		FilterQuizSubmissions(ctx context.Context, studentID int, filter QuizFilter) ([]QuizSubmission, error)
		FilterPendingGrades(ctx context.Context, ident user.Identity, filter QuizFilter) ([]PendingGrade, error)
		QuizAnswered(ctx context.Context, studentID, quizID int) (bool, error)
		// CreateQuizSubmission inserts the submission and its staged pending
		// grade in one transaction.
		CreateQuizSubmission(ctx context.Context, sub QuizSubmission, pending PendingGrade) error

		HomeworkAnswered(ctx context.Context, studentID, taskID int) (bool, error)
		CreateHomeworkSubmission(ctx context.Context, hs HomeworkSubmission) (HomeworkSubmission, error)
		GetHomeworkSubmission(ctx context.Context, id int) (HomeworkSubmission, error)
		DeleteHomeworkSubmission(ctx context.Context, id int) error

		// PromotePendingGrades converts staged grades whose assessment due
		// date has passed into permanent grade rows and removes the staged
		// rows, all in one transaction. Returns the number promoted.
		PromotePendingGrades(ctx context.Context) (int64, error)

		GetSubjectName(ctx context.Context, subjectID int) (string, error)
		SubjectRecipients(ctx context.Context, subjectID int) ([]user.Recipient, error)
		GetSenderName(ctx context.Context, userID int) (string, error)
	}

	FileRemover interface {
		Remove(path string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		files   FileRemover
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, files FileRemover, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, files: files, logger: logger}
}

func (svc *Service) Filter(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Assessment, error) {
	filter.Clean()
	return svc.repo.Filter(ctx, ident, filter)
}

// Create posts an assessment. Teachers may only post on subjects they teach.
// A selfassessable assessment carries its quiz; everything lands in one
// transaction. Enrolled students are notified once committed.
func (svc *Service) Create(ctx context.Context, ident user.Identity, na NewAssessment) (Assessment, error) {
	switch {
	case ident.IsAdmin():
	case ident.IsTeacher():
		owns, err := svc.repo.TeacherOwnsSubject(ctx, ident.ID, na.SubjectID)
		if err != nil {
			return Assessment{}, err
		}
		if !owns {
			return Assessment{}, core.NewPermissionError("")
		}
	default:
		return Assessment{}, core.NewPermissionError("")
	}

	a := Assessment{
		SubjectID: na.SubjectID,
		Task:      na.Task,
		DueDate:   na.DueDate,
		Kind:      na.Kind,
	}

	var err error
	if na.Kind == KindSelfassessable {
		a, err = svc.repo.CreateQuizAssessment(ctx, a, na.Quiz.questions())
	} else {
		a, err = svc.repo.CreateAssessment(ctx, a)
	}
	if err != nil {
		return Assessment{}, err
	}

	svc.notify(ctx, ident, a)
	return a, nil
}

func (svc *Service) Update(ctx context.Context, ident user.Identity, id int, ua UpdateAssessment) error {
	if err := ua.Validate(); err != nil {
		return err
	}
	if ua.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	if err := svc.authorize(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.UpdateAssessment(ctx, id, ua)
}

func (svc *Service) Delete(ctx context.Context, ident user.Identity, id int) error {
	if err := svc.authorize(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssessment(ctx, id)
}

func (svc *Service) authorize(ctx context.Context, ident user.Identity, id int) error {
	switch {
	case ident.IsAdmin():
		return nil
	case ident.IsTeacher():
		owns, err := svc.repo.TeacherOwnsAssessment(ctx, ident.ID, id)
		if err != nil {
			return err
		}
		if !owns {
			return core.NewPermissionError("")
		}
		return nil
	}
	return core.NewPermissionError("")
}

// DueQuizzes returns the quizzes a student may take right now, options
// shuffled per request. Only students, only on the due date.
func (svc *Service) DueQuizzes(ctx context.Context, ident user.Identity, filter QuizFilter) ([]PublicQuizQuestion, error) {
	if !ident.IsStudent() {
		return nil, core.NewPermissionError("only students can fetch selfassessables")
	}
	questions, err := svc.repo.FilterDueQuizQuestions(ctx, ident.ID, filter)
	if err != nil {
		return nil, err
	}
	public := make([]PublicQuizQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, q.Public())
	}
	return public, nil
}

func (svc *Service) QuizSubmissions(ctx context.Context, ident user.Identity, filter QuizFilter) ([]QuizSubmission, error) {
	if !ident.IsStudent() {
		return nil, core.NewPermissionError("only students can fetch their submissions")
	}
	return svc.repo.FilterQuizSubmissions(ctx, ident.ID, filter)
}

// PendingGrades lists staged quiz grades: admin sees all, a teacher those of
// their own subjects. Everyone else is denied.
func (svc *Service) PendingGrades(ctx context.Context, ident user.Identity, filter QuizFilter) ([]PendingGrade, error) {
	if !ident.IsAdmin() && !ident.IsTeacher() {
		return nil, core.NewPermissionError("")
	}
	return svc.repo.FilterPendingGrades(ctx, ident, filter)
}

// SubmitQuiz grades a student's answers and stages the result as a pending
// grade. Allowed only on the assessment's due date, once per student.
func (svc *Service) SubmitQuiz(ctx context.Context, ident user.Identity, ns NewQuizSubmission) (PendingGrade, error) {
	if !ident.IsStudent() {
		return PendingGrade{}, core.NewPermissionError("only students can submit selfassessables")
	}

	a, err := svc.repo.GetAssessment(ctx, ns.AssessmentID)
	if err != nil {
		return PendingGrade{}, err
	}
	if a.Kind != KindSelfassessable {
		return PendingGrade{}, core.NewValidationError(ErrNotQuiz)
	}
	if today := time.Now().UTC().Truncate(24 * time.Hour); !a.DueDate.UTC().Truncate(24 * time.Hour).Equal(today) {
		return PendingGrade{}, core.NewValidationError(ErrNotDueToday)
	}

	if err = svc.checkStudentInSubjectCourse(ctx, ident.ID, a.SubjectID); err != nil {
		return PendingGrade{}, err
	}

	quiz, err := svc.repo.GetQuizByAssessment(ctx, ns.AssessmentID)
	if err != nil {
		return PendingGrade{}, err
	}
	answered, err := svc.repo.QuizAnswered(ctx, ident.ID, quiz.ID)
	if err != nil {
		return PendingGrade{}, err
	}
	if answered {
		return PendingGrade{}, core.NewConflictError(ErrAlreadySubmitted.Error())
	}

	questions, err := svc.repo.FilterDueQuizQuestions(ctx, ident.ID, QuizFilter{AssessmentID: null.IntFrom(ns.AssessmentID)})
	if err != nil {
		return PendingGrade{}, err
	}
	corrects := make([]string, 0, len(questions))
	for _, q := range questions {
		corrects = append(corrects, q.Correct)
	}

	pending := PendingGrade{
		QuizID:    quiz.ID,
		StudentID: ident.ID,
		Grade:     Score(ns.Answers, corrects),
	}
	sub := QuizSubmission{
		QuizID:    quiz.ID,
		StudentID: ident.ID,
		Answers:   strings.Join(ns.Answers, ","),
	}
	if err = svc.repo.CreateQuizSubmission(ctx, sub, pending); err != nil {
		return PendingGrade{}, err
	}
	return pending, nil
}

// SubmitHomework records an uploaded homework file for a task. One
// submission per (student, task).
func (svc *Service) SubmitHomework(ctx context.Context, ident user.Identity, taskID int, path string) (HomeworkSubmission, error) {
	if !ident.IsStudent() {
		return HomeworkSubmission{}, core.NewPermissionError("only students can submit homeworks")
	}

	a, err := svc.repo.GetAssessment(ctx, taskID)
	if err != nil {
		return HomeworkSubmission{}, err
	}
	if a.Kind != KindHomework {
		return HomeworkSubmission{}, core.NewValidationError(ErrNotHomework)
	}
	if err = svc.checkStudentInSubjectCourse(ctx, ident.ID, a.SubjectID); err != nil {
		return HomeworkSubmission{}, err
	}

	answered, err := svc.repo.HomeworkAnswered(ctx, ident.ID, taskID)
	if err != nil {
		return HomeworkSubmission{}, err
	}
	if answered {
		return HomeworkSubmission{}, core.NewConflictError(ErrAlreadySubmitted.Error())
	}

	return svc.repo.CreateHomeworkSubmission(ctx, HomeworkSubmission{
		Path:      path,
		StudentID: ident.ID,
		TaskID:    taskID,
	})
}

// DeleteHomeworkSubmission removes the row and its backing file. A file
// removal failure is logged and the row delete proceeds.
func (svc *Service) DeleteHomeworkSubmission(ctx context.Context, ident user.Identity, id int) error {
	hs, err := svc.repo.GetHomeworkSubmission(ctx, id)
	if err != nil {
		return err
	}
	if !ident.IsAdmin() && !(ident.IsStudent() && hs.StudentID == ident.ID) {
		return core.NewPermissionError("")
	}
	if hs.Path != "" {
		if err := svc.files.Remove(hs.Path); err != nil {
			svc.logger.Error("removing homework submission file", err)
		}
	}
	return svc.repo.DeleteHomeworkSubmission(ctx, id)
}

func (svc *Service) QuizAnswered(ctx context.Context, ident user.Identity, assessmentID int) (bool, error) {
	if !ident.IsStudent() {
		return false, core.NewPermissionError("")
	}
	quiz, err := svc.repo.GetQuizByAssessment(ctx, assessmentID)
	if err != nil {
		return false, err
	}
	return svc.repo.QuizAnswered(ctx, ident.ID, quiz.ID)
}

func (svc *Service) HomeworkAnswered(ctx context.Context, ident user.Identity, taskID int) (bool, error) {
	if !ident.IsStudent() {
		return false, core.NewPermissionError("")
	}
	return svc.repo.HomeworkAnswered(ctx, ident.ID, taskID)
}

// PromotePendingGrades runs the scheduled sweep. Idempotent: a second run
// finds no staged rows left to promote.
func (svc *Service) PromotePendingGrades(ctx context.Context) error {
	n, err := svc.repo.PromotePendingGrades(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		svc.logger.Info("promoted pending selfassessable grades", n)
	}
	return nil
}

func (svc *Service) checkStudentInSubjectCourse(ctx context.Context, studentID, subjectID int) error {
	studentCourse, err := svc.repo.StudentCourse(ctx, studentID)
	if err != nil {
		return err
	}
	subjectCourse, err := svc.repo.SubjectCourse(ctx, subjectID)
	if err != nil {
		return err
	}
	if studentCourse != subjectCourse {
		return core.NewPermissionError("student does not belong to this course")
	}
	return nil
}

func (svc *Service) notify(ctx context.Context, ident user.Identity, a Assessment) {
	recipients, err := svc.repo.SubjectRecipients(ctx, a.SubjectID)
	if err != nil {
		svc.logger.Error("resolving assessment recipients", err)
		return
	}
	if len(recipients) == 0 {
		return
	}
	senderName, err := svc.repo.GetSenderName(ctx, ident.ID)
	if err != nil {
		svc.logger.Error("resolving sender name", err)
		return
	}
	subjectName, err := svc.repo.GetSubjectName(ctx, a.SubjectID)
	if err != nil {
		svc.logger.Error("resolving subject name", err)
		return
	}

	messages := make([]*core.EmailMessage, 0, len(recipients))
	for _, r := range recipients {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: r.FullName, Address: r.Email}},
			Subject:      "Nueva evaluación en la materia: " + subjectName,
			TemplateName: "assessment-created",
			TemplateData: struct {
				SenderName      string
				ReceiverName    string
				SubjectName     string
				AssessmentTitle string
				DueDate         string
			}{senderName, r.FullName, subjectName, a.Task, a.DueDate.Format("2006-01-02")},
		})
	}
	svc.mailSvc.SendMessages(messages...)
}

