package main

import (
	"context"

	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

// addUser creates a user with a single role and minimal personal data.
func (cli *commandLine) addUser(email, fullName, pwd string, role user.Role, courseID int) error {
	ctx := context.Background()

	usr := user.User{Email: core.CleanString(email, true /* lower */)}
	if courseID > 0 {
		usr.CourseID = null.IntFrom(courseID)
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	pd := user.PersonalData{FullName: core.CleanString(fullName)}

	if _, err := cli.usrRepo.CreateUser(ctx, usr, role, pd); err != nil {
		return err
	}
	return nil
}
