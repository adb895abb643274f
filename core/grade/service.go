package grade

import (
	"context"
	"errors"
	"net/mail"

	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

var (
	ErrNotFound       = errors.New("grade not found")
	ErrDuplicateGrade = errors.New("a grade already exists for this assessment and student")
)

type (
	Repository interface {
		Filter(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Grade, error)

		TeacherOwnsSubject(ctx context.Context, teacherID, subjectID int) (bool, error)
		TeacherOwnsGrade(ctx context.Context, teacherID, gradeID int) (bool, error)
		SubjectCourse(ctx context.Context, subjectID int) (int, error)
		StudentInCourse(ctx context.Context, studentID, courseID int) (bool, error)
		AssessmentInSubject(ctx context.Context, assessmentID, subjectID int) (bool, error)
		GradeExists(ctx context.Context, assessmentID, studentID int) (bool, error)

		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		UpdateGrade(ctx context.Context, id int, ug UpdateGrade) error
		DeleteGrade(ctx context.Context, id int) error

		GetSubjectName(ctx context.Context, subjectID int) (string, error)
		GetSenderName(ctx context.Context, userID int) (string, error)
		GetStudentRecipient(ctx context.Context, studentID int) (user.Recipient, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger}
}

func (svc *Service) Filter(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Grade, error) {
	filter.Clean()
	return svc.repo.Filter(ctx, ident, filter)
}

// Create grades a student in a subject. The student must belong to the
// subject's course; when an assessment is referenced it must belong to the
// same subject and must not already hold a grade for that student.
func (svc *Service) Create(ctx context.Context, ident user.Identity, ng NewGrade) (Grade, error) {
	switch {
	case ident.IsAdmin():
	case ident.IsTeacher():
		owns, err := svc.repo.TeacherOwnsSubject(ctx, ident.ID, ng.SubjectID)
		if err != nil {
			return Grade{}, err
		}
		if !owns {
			return Grade{}, core.NewPermissionError("")
		}
	default:
		return Grade{}, core.NewPermissionError("")
	}

	courseID, err := svc.repo.SubjectCourse(ctx, ng.SubjectID)
	if err != nil {
		return Grade{}, err
	}
	inCourse, err := svc.repo.StudentInCourse(ctx, ng.StudentID, courseID)
	if err != nil {
		return Grade{}, err
	}
	if !inCourse {
		return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student does not belong to the subject's course"})
	}

	if ng.AssessmentID.Valid {
		inSubject, err := svc.repo.AssessmentInSubject(ctx, int(ng.AssessmentID.Int), ng.SubjectID)
		if err != nil {
			return Grade{}, err
		}
		if !inSubject {
			return Grade{}, core.NewValidationError(nil, core.FieldError{Field: "assessment_id", Error: "assessment does not belong to this subject"})
		}
		exists, err := svc.repo.GradeExists(ctx, int(ng.AssessmentID.Int), ng.StudentID)
		if err != nil {
			return Grade{}, err
		}
		if exists {
			return Grade{}, core.NewConflictError(ErrDuplicateGrade.Error())
		}
	}

	g, err := svc.repo.CreateGrade(ctx, Grade{
		Description:  null.NewString(ng.Description, ng.Description != ""),
		Grade:        ng.Grade,
		StudentID:    ng.StudentID,
		SubjectID:    ng.SubjectID,
		AssessmentID: ng.AssessmentID,
		Kind:         null.StringFrom(string(ng.Kind)),
	})
	if err != nil {
		return Grade{}, err
	}

	svc.notify(ctx, ident, g)
	return g, nil
}

func (svc *Service) Update(ctx context.Context, ident user.Identity, id int, ug UpdateGrade) error {
	if err := ug.Validate(); err != nil {
		return err
	}
	if ug.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	if err := svc.authorize(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.UpdateGrade(ctx, id, ug)
}

func (svc *Service) Delete(ctx context.Context, ident user.Identity, id int) error {
	if err := svc.authorize(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteGrade(ctx, id)
}

func (svc *Service) authorize(ctx context.Context, ident user.Identity, id int) error {
	switch {
	case ident.IsAdmin():
		return nil
	case ident.IsTeacher():
		owns, err := svc.repo.TeacherOwnsGrade(ctx, ident.ID, id)
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

func (svc *Service) notify(ctx context.Context, ident user.Identity, g Grade) {
	recipient, err := svc.repo.GetStudentRecipient(ctx, g.StudentID)
	if err != nil {
		svc.logger.Error("resolving grade recipient", err)
		return
	}
	senderName, err := svc.repo.GetSenderName(ctx, ident.ID)
	if err != nil {
		svc.logger.Error("resolving sender name", err)
		return
	}
	subjectName, err := svc.repo.GetSubjectName(ctx, g.SubjectID)
	if err != nil {
		svc.logger.Error("resolving subject name", err)
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: recipient.FullName, Address: recipient.Email}},
		Subject:      "Nueva nota en la materia: " + subjectName,
		TemplateName: "grade-submitted",
		TemplateData: struct {
			SenderName  string
			StudentName string
			SubjectName string
			Grade       string
		}{senderName, recipient.FullName, subjectName, g.Grade.String()},
	})
}
