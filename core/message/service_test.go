package message

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

type fakeRepo struct {
	Repository

	presided   []int
	isSender   bool
	recipients []user.Recipient
	senderName string

	created        *Message
	createdCourses []int
}

func (r *fakeRepo) PreceptorCourses(ctx context.Context, preceptorID int) ([]int, error) {
	return r.presided, nil
}

func (r *fakeRepo) IsSender(ctx context.Context, userID, messageID int) (bool, error) {
	return r.isSender, nil
}

func (r *fakeRepo) CreateMessage(ctx context.Context, msg Message, courseIDs []int) (Message, error) {
	msg.ID = 1
	r.created, r.createdCourses = &msg, courseIDs
	return msg, nil
}

func (r *fakeRepo) DeleteMessage(ctx context.Context, id int) error { return nil }

func (r *fakeRepo) CourseRecipients(ctx context.Context, courseIDs []int) ([]user.Recipient, error) {
	return r.recipients, nil
}

func (r *fakeRepo) GetSenderName(ctx context.Context, userID int) (string, error) {
	return r.senderName, nil
}

type recordingMailService struct{ sent []*core.EmailMessage }

func (s *recordingMailService) SendMessages(messages ...*core.EmailMessage) {
	s.sent = append(s.sent, messages...)
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	nm := NewMessage{Title: "aviso", Message: "reunión el lunes", CourseIDs: []int{2, 3}}

	t.Run("admin targets any course", func(t *testing.T) {
		repo := &fakeRepo{}
		svc := NewService(repo, &recordingMailService{}, nopLogger{})

		msg, err := svc.Create(ctx, user.Identity{ID: 1, Role: user.RoleAdmin}, nm)
		require.NoError(t, err)
		assert.Equal(t, 1, msg.SenderID)
		assert.Equal(t, []int{2, 3}, repo.createdCourses)
	})

	t.Run("preceptor must preside a target course", func(t *testing.T) {
		repo := &fakeRepo{presided: []int{3, 9}}
		svc := NewService(repo, &recordingMailService{}, nopLogger{})

		_, err := svc.Create(ctx, user.Identity{ID: 4, Role: user.RolePreceptor}, nm)
		assert.NoError(t, err)

		repo.presided = []int{7, 9}
		_, err = svc.Create(ctx, user.Identity{ID: 4, Role: user.RolePreceptor}, nm)
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("other roles are denied", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, &recordingMailService{}, nopLogger{})
		for _, role := range []user.Role{user.RoleTeacher, user.RoleStudent, user.RoleFather} {
			_, err := svc.Create(ctx, user.Identity{ID: 9, Role: role}, nm)
			assert.Truef(t, core.IsPermissionDenied(err), "role %s should be denied", role)
		}
	})

	t.Run("enrolled users are notified", func(t *testing.T) {
		repo := &fakeRepo{
			recipients: []user.Recipient{
				{Email: "ana@example.com", FullName: "Ana"},
				{Email: "leo@example.com", FullName: "Leo"},
			},
			senderName: "Directora",
		}
		mailSvc := &recordingMailService{}
		svc := NewService(repo, mailSvc, nopLogger{})

		_, err := svc.Create(ctx, user.Identity{ID: 1, Role: user.RoleAdmin}, nm)
		require.NoError(t, err)
		require.Len(t, mailSvc.sent, 2)
		assert.Equal(t, "Nuevo mensaje recibido", mailSvc.sent[0].Subject)
		assert.Equal(t, "message-sent", mailSvc.sent[0].TemplateName)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("sender may delete", func(t *testing.T) {
		svc := NewService(&fakeRepo{isSender: true}, &recordingMailService{}, nopLogger{})
		assert.NoError(t, svc.Delete(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, 1))
	})

	t.Run("non-sender may not", func(t *testing.T) {
		svc := NewService(&fakeRepo{isSender: false}, &recordingMailService{}, nopLogger{})
		err := svc.Delete(ctx, user.Identity{ID: 9, Role: user.RoleTeacher}, 1)
		assert.True(t, core.IsPermissionDenied(err))
	})
}

func TestUpdateMessage_IsEmpty(t *testing.T) {
	assert.True(t, UpdateMessage{}.IsEmpty())
	svc := NewService(&fakeRepo{}, &recordingMailService{}, nopLogger{})
	err := svc.Update(context.Background(), user.Identity{ID: 1, Role: user.RoleAdmin}, 1, UpdateMessage{})
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
