package message

import (
	"context"
	"errors"
	"net/mail"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

var ErrNotFound = errors.New("message not found")

type (
	Repository interface {
		Filter(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Message, error)

		PreceptorCourses(ctx context.Context, preceptorID int) ([]int, error)
		IsSender(ctx context.Context, userID, messageID int) (bool, error)

		// CreateMessage inserts the message and its course fan-out rows in
		// one transaction.
		CreateMessage(ctx context.Context, msg Message, courseIDs []int) (Message, error)
		UpdateMessage(ctx context.Context, id int, um UpdateMessage) error
		DeleteMessage(ctx context.Context, id int) error

		// CourseRecipients lists the users enrolled in any of the courses.
		CourseRecipients(ctx context.Context, courseIDs []int) ([]user.Recipient, error)
		GetSenderName(ctx context.Context, userID int) (string, error)
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

func (svc *Service) Filter(ctx context.Context, ident user.Identity, filter QueryFilter) ([]Message, error) {
	filter.Clean()
	return svc.repo.Filter(ctx, ident, filter)
}

// Create broadcasts a message to a set of courses. A preceptor must preside
// over at least one of the target courses; admin may target any. The course
// fan-out lands in the same transaction as the message. Enrolled users are
// notified once committed.
func (svc *Service) Create(ctx context.Context, ident user.Identity, nm NewMessage) (Message, error) {
	switch {
	case ident.IsAdmin():
	case ident.IsPreceptor():
		presided, err := svc.repo.PreceptorCourses(ctx, ident.ID)
		if err != nil {
			return Message{}, err
		}
		if !intersects(presided, nm.CourseIDs) {
			return Message{}, core.NewPermissionError("")
		}
	default:
		return Message{}, core.NewPermissionError("")
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		Title:    nm.Title,
		Message:  nm.Message,
		SenderID: ident.ID,
	}, nm.CourseIDs)
	if err != nil {
		return Message{}, err
	}

	svc.notify(ctx, ident, msg, nm.CourseIDs)
	return msg, nil
}

func (svc *Service) Update(ctx context.Context, ident user.Identity, id int, um UpdateMessage) error {
	if um.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	if err := svc.authorize(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.UpdateMessage(ctx, id, um)
}

func (svc *Service) Delete(ctx context.Context, ident user.Identity, id int) error {
	if err := svc.authorize(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteMessage(ctx, id)
}

// admin and preceptor always, otherwise only the sender.
func (svc *Service) authorize(ctx context.Context, ident user.Identity, id int) error {
	if ident.IsAdmin() || ident.IsPreceptor() {
		return nil
	}
	isSender, err := svc.repo.IsSender(ctx, ident.ID, id)
	if err != nil {
		return err
	}
	if !isSender {
		return core.NewPermissionError("")
	}
	return nil
}

func (svc *Service) notify(ctx context.Context, ident user.Identity, msg Message, courseIDs []int) {
	recipients, err := svc.repo.CourseRecipients(ctx, courseIDs)
	if err != nil {
		svc.logger.Error("resolving message recipients", err)
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

	messages := make([]*core.EmailMessage, 0, len(recipients))
	for _, r := range recipients {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: r.FullName, Address: r.Email}},
			Subject:      "Nuevo mensaje recibido",
			TemplateName: "message-sent",
			TemplateData: struct {
				SenderName   string
				ReceiverName string
				Message      string
			}{senderName, r.FullName, msg.Message},
		})
	}
	svc.mailSvc.SendMessages(messages...)
}

func intersects(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
