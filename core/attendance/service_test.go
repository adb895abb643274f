package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

type fakeRepo struct {
	Repository

	oversees bool

	created *Assistance
}

func (r *fakeRepo) PreceptorOverseesStudent(ctx context.Context, preceptorID, studentID int) (bool, error) {
	return r.oversees, nil
}

func (r *fakeRepo) CreateAssistance(ctx context.Context, a Assistance) (Assistance, error) {
	a.ID = 1
	r.created = &a
	return a, nil
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestService_CreateAssistance(t *testing.T) {
	ctx := context.Background()
	present := true
	na := NewAssistance{StudentID: 5, Presence: &present, Date: time.Now()}

	t.Run("presiding preceptor may record", func(t *testing.T) {
		repo := &fakeRepo{oversees: true}
		svc := NewService(repo, nopLogger{})

		a, err := svc.CreateAssistance(ctx, user.Identity{ID: 4, Role: user.RolePreceptor}, na)
		require.NoError(t, err)
		assert.Equal(t, 1, a.ID)
		assert.True(t, a.Presence)
	})

	t.Run("foreign preceptor may not", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, nopLogger{})
		_, err := svc.CreateAssistance(ctx, user.Identity{ID: 4, Role: user.RolePreceptor}, na)
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("missing presence fails validation", func(t *testing.T) {
		svc := NewService(&fakeRepo{oversees: true}, nopLogger{})
		bad := na
		bad.Presence = nil
		_, err := svc.CreateAssistance(ctx, user.Identity{ID: 1, Role: user.RoleAdmin}, bad)
		assert.Error(t, err)
	})
}

func TestService_CreateSanction(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeRepo{oversees: true}, nopLogger{})

	t.Run("missing quantity fails validation", func(t *testing.T) {
		ns := NewSanction{StudentID: 5, Kind: "amonestación", Date: time.Now()}
		_, err := svc.CreateSanction(ctx, user.Identity{ID: 1, Role: user.RoleAdmin}, ns)
		assert.Error(t, err)
	})
}
