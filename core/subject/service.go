package subject

import (
	"context"
	"errors"
	"net/mail"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

var ErrNotFound = errors.New("subject message not found")

type (
	Repository interface {
		FilterSubjects(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Subject, error)
		FilterMessages(ctx context.Context, ident user.Identity, filter MessageFilter) ([]Message, error)

		TeacherOwnsSubject(ctx context.Context, teacherID, subjectID int) (bool, error)
		TeacherOwnsMessage(ctx context.Context, teacherID, messageID int) (bool, error)

		CreateMessage(ctx context.Context, msg Message) (Message, error)
		UpdateMessage(ctx context.Context, id int, um UpdateMessage) error
		// GetMessageFile returns the stored file reference, empty when the
		// message carries none.
		GetMessageFile(ctx context.Context, id int) (string, error)
		DeleteMessage(ctx context.Context, id int) error

		GetSubjectName(ctx context.Context, subjectID int) (string, error)
		// SubjectRecipients lists the students enrolled in the subject's course.
		SubjectRecipients(ctx context.Context, subjectID int) ([]user.Recipient, error)
		GetSenderName(ctx context.Context, userID int) (string, error)
	}

	// FileRemover deletes a stored upload by its reference.
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

func (svc *Service) Filter(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Subject, error) {
	filter.Clean()
	return svc.repo.FilterSubjects(ctx, ident, filter)
}

func (svc *Service) FilterMessages(ctx context.Context, ident user.Identity, filter MessageFilter) ([]Message, error) {
	return svc.repo.FilterMessages(ctx, ident, filter)
}

// CreateMessage posts an announcement on a subject. Teachers may only post on
// subjects they teach. Enrolled students are notified by email once the row
// is committed; notification failure never surfaces.
func (svc *Service) CreateMessage(ctx context.Context, ident user.Identity, nm NewMessage) (Message, error) {
	switch {
	case ident.IsAdmin():
	case ident.IsTeacher():
		owns, err := svc.repo.TeacherOwnsSubject(ctx, ident.ID, nm.SubjectID)
		if err != nil {
			return Message{}, err
		}
		if !owns {
			return Message{}, core.NewPermissionError("")
		}
	default:
		return Message{}, core.NewPermissionError("")
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		SubjectID: nm.SubjectID,
		SenderID:  ident.ID,
		Title:     nm.Title,
		Content:   nm.Content,
		Kind:      nm.Kind,
	})
	if err != nil {
		return Message{}, err
	}

	svc.notify(ctx, ident, msg)
	return msg, nil
}

func (svc *Service) UpdateMessage(ctx context.Context, ident user.Identity, id int, um UpdateMessage) error {
	if err := um.Validate(); err != nil {
		return err
	}
	if um.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	if err := svc.authorizeMessage(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.UpdateMessage(ctx, id, um)
}

// DeleteMessage removes the row and, when the message references an uploaded
// file, the backing file. A file removal failure is logged and the row delete
// proceeds; an orphaned file beats a row that cannot be deleted.
func (svc *Service) DeleteMessage(ctx context.Context, ident user.Identity, id int) error {
	if err := svc.authorizeMessage(ctx, ident, id); err != nil {
		return err
	}

	path, err := svc.repo.GetMessageFile(ctx, id)
	if err != nil {
		return err
	}
	if path != "" {
		if err := svc.files.Remove(path); err != nil {
			svc.logger.Error("removing subject message file", err)
		}
	}
	return svc.repo.DeleteMessage(ctx, id)
}

func (svc *Service) authorizeMessage(ctx context.Context, ident user.Identity, id int) error {
	switch {
	case ident.IsAdmin():
		return nil
	case ident.IsTeacher():
		owns, err := svc.repo.TeacherOwnsMessage(ctx, ident.ID, id)
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

func (svc *Service) notify(ctx context.Context, ident user.Identity, msg Message) {
	recipients, err := svc.repo.SubjectRecipients(ctx, msg.SubjectID)
	if err != nil {
		svc.logger.Error("resolving subject message recipients", err)
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
	subjectName, err := svc.repo.GetSubjectName(ctx, msg.SubjectID)
	if err != nil {
		svc.logger.Error("resolving subject name", err)
		return
	}

	content := msg.Content
	if msg.Kind == MessageKindFile {
		content = "Archivo adjunto"
	}

	messages := make([]*core.EmailMessage, 0, len(recipients))
	for _, r := range recipients {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: r.FullName, Address: r.Email}},
			Subject:      "Nuevo mensaje en la materia: " + subjectName,
			TemplateName: "subject-message-created",
			TemplateData: struct {
				SenderName   string
				ReceiverName string
				SubjectName  string
				Message      string
			}{senderName, r.FullName, subjectName, content},
		})
	}
	svc.mailSvc.SendMessages(messages...)
}
