package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarhq/escolar/core/user"
)

type recordingUserRepo struct {
	user.Repository

	created *user.User
	role    user.Role
	pd      user.PersonalData
}

func (r *recordingUserRepo) CreateUser(ctx context.Context, usr user.User, role user.Role, pd user.PersonalData) (user.User, error) {
	r.created, r.role, r.pd = &usr, role, pd
	usr.ID = 1
	return usr, nil
}

func setupCLI() (*commandLine, *recordingUserRepo) {
	repo := &recordingUserRepo{}
	return &commandLine{db: &sqlx.DB{}, usrRepo: repo}, repo
}

func Test_commandLine_run(t *testing.T) {
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cretpass"), nil }
	migrateFunc = func(db *sql.DB) error { return nil }

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "no command", args: []string{"admin"}, wantErr: errHelp},
		{name: "unknown command", args: []string{"admin", "lol"}, wantErr: errHelp},
		{name: "migrate", args: []string{"admin", "migrate"}},
		{name: "createsuperuser: missing email", args: []string{"admin", "createsuperuser", "-name", "Root"}, wantErr: errHelp},
		{name: "createsuperuser", args: []string{"admin", "createsuperuser", "-email", "root@example.com", "-name", "Root"}},
		{name: "adduser: unknown role", args: []string{"admin", "adduser", "-email", "a@b.c", "-name", "A", "-role", "janitor"}, wantErr: errHelp},
		{name: "adduser", args: []string{"admin", "adduser", "-email", "ana@example.com", "-name", "Ana", "-role", "student", "-course", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, _ := setupCLI()
			err := cli.run(tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, repo := setupCLI()

	require.NoError(t, cli.addUser(" Ana@Example.COM ", " Ana García ", "s3cretpass", user.RoleStudent, 2))

	require.NotNil(t, repo.created)
	assert.Equal(t, "ana@example.com", repo.created.Email)
	assert.NoError(t, repo.created.CheckPassword("s3cretpass"))
	require.True(t, repo.created.CourseID.Valid)
	assert.Equal(t, 2, repo.created.CourseID.Int)
	assert.Equal(t, user.RoleStudent, repo.role)
	assert.Equal(t, "Ana García", repo.pd.FullName)
}

func Test_commandLine_addUser_noCourse(t *testing.T) {
	cli, repo := setupCLI()

	require.NoError(t, cli.addUser("root@example.com", "Root", "s3cretpass", user.RoleAdmin, 0))
	require.NotNil(t, repo.created)
	assert.False(t, repo.created.CourseID.Valid)
}
