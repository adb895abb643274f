package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_SetCheckPassword(t *testing.T) {
	var usr User
	require.NoError(t, usr.SetPassword("s3cretpass"))
	require.NotEmpty(t, usr.PasswordHash)

	assert.NoError(t, usr.CheckPassword("s3cretpass"))
	assert.Error(t, usr.CheckPassword("wrongpass"))
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "admin", want: RoleAdmin},
		{in: " Teacher ", want: RoleTeacher},
		{in: "STUDENT", want: RoleStudent},
		{in: "preceptor", want: RolePreceptor},
		{in: "father", want: RoleFather},
		{in: "janitor", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	nu := NewUser{
		Email:    "  John.Doe@Example.COM ",
		Password: "longenough",
		Role:     RoleStudent,
		FullName: " John Doe ",
	}
	require.NoError(t, nu.Validate())
	assert.Equal(t, "john.doe@example.com", nu.Email)
	assert.Equal(t, "John Doe", nu.FullName)

	tests := []struct {
		name string
		mut  func(*NewUser)
	}{
		{name: "bad email", mut: func(nu *NewUser) { nu.Email = "nope" }},
		{name: "short password", mut: func(nu *NewUser) { nu.Password = "short" }},
		{name: "missing name", mut: func(nu *NewUser) { nu.FullName = "" }},
		{name: "unknown role", mut: func(nu *NewUser) { nu.Role = "janitor" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := nu
			tt.mut(&bad)
			assert.Error(t, bad.Validate())
		})
	}
}

func TestIdentity_RoleChecks(t *testing.T) {
	assert.True(t, Identity{Role: RoleAdmin}.IsAdmin())
	assert.True(t, Identity{Role: RoleTeacher}.IsTeacher())
	assert.True(t, Identity{Role: RoleStudent}.IsStudent())
	assert.True(t, Identity{Role: RolePreceptor}.IsPreceptor())
	assert.True(t, Identity{Role: RoleFather}.IsFather())
	assert.False(t, Identity{Role: RoleStudent}.IsAdmin())
}
