package user

import (
	"context"
	"errors"
	"time"

	"github.com/escolarhq/escolar/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrUnknownRole = errors.New("unknown role")
)

type (
	Repository interface {
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		// CreateUser inserts the user, its role and its personal data in one transaction.
		CreateUser(ctx context.Context, usr User, role Role, pd PersonalData) (User, error)
		UserHasRole(ctx context.Context, userID int, role Role) (bool, error)
		GetUserRoles(ctx context.Context, userID int) ([]Role, error)
		SetLastLogin(ctx context.Context, userID int, at time.Time) error

		// FilterStudents applies the caller's visibility scope before any filter.
		FilterStudents(ctx context.Context, ident Identity, filter QueryFilter) ([]PublicUser, error)

		GetPersonalData(ctx context.Context, userID int) (PersonalData, error)
		FilterPublicPersonalData(ctx context.Context, filter QueryFilter) ([]PublicPersonalData, error)
		UpdatePersonalData(ctx context.Context, userID int, up UpdatePersonalData) error
		DeletePersonalData(ctx context.Context, userID int) error

		GetProfilePicture(ctx context.Context, userID int) (string, error)
		SetProfilePicture(ctx context.Context, userID int, path string) error
		ClearProfilePicture(ctx context.Context, userID int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate verifies the credentials and that the user actually holds the
// requested role, then stamps last_login. The returned Identity is what goes
// into the session token.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(creds.Email, true /* lower */))
	if err != nil {
		return Identity{}, err
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return Identity{}, ErrNotFound
	}
	hasRole, err := svc.repo.UserHasRole(ctx, usr.ID, creds.Role)
	if err != nil {
		return Identity{}, err
	}
	if !hasRole {
		return Identity{}, core.NewPermissionError("role not granted to this user")
	}
	if err = svc.repo.SetLastLogin(ctx, usr.ID, time.Now().UTC()); err != nil {
		return Identity{}, err
	}
	return Identity{ID: usr.ID, Role: creds.Role}, nil
}

// Register creates a user with one role and its personal data. Admin only.
func (svc *Service) Register(ctx context.Context, ident Identity, nu NewUser) (User, error) {
	if !ident.IsAdmin() {
		return User{}, core.NewPermissionError("")
	}

	usr := User{Email: nu.Email, CourseID: nu.CourseID}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	pd := PersonalData{
		FullName:    nu.FullName,
		PhoneNumber: nu.PhoneNumber,
		Address:     nu.Address,
		BirthDate:   nu.BirthDate,
	}
	return svc.repo.CreateUser(ctx, usr, nu.Role, pd)
}

func (svc *Service) Roles(ctx context.Context, ident Identity) ([]Role, error) {
	return svc.repo.GetUserRoles(ctx, ident.ID)
}

func (svc *Service) FilterStudents(ctx context.Context, ident Identity, filter QueryFilter) ([]PublicUser, error) {
	filter.Clean()
	return svc.repo.FilterStudents(ctx, ident, filter)
}

// PersonalData returns the caller's own record.
func (svc *Service) PersonalData(ctx context.Context, ident Identity) (PersonalData, error) {
	return svc.repo.GetPersonalData(ctx, ident.ID)
}

func (svc *Service) FilterPublicPersonalData(ctx context.Context, filter QueryFilter) ([]PublicPersonalData, error) {
	filter.Clean()
	return svc.repo.FilterPublicPersonalData(ctx, filter)
}

func (svc *Service) UpdatePersonalData(ctx context.Context, ident Identity, userID int, up UpdatePersonalData) error {
	if !ident.IsAdmin() {
		return core.NewPermissionError("")
	}
	if up.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	return svc.repo.UpdatePersonalData(ctx, userID, up)
}

func (svc *Service) DeletePersonalData(ctx context.Context, ident Identity, userID int) error {
	if !ident.IsAdmin() {
		return core.NewPermissionError("")
	}
	return svc.repo.DeletePersonalData(ctx, userID)
}

// ProfilePicture returns the stored photo URL, or the default when unset.
func (svc *Service) ProfilePicture(ctx context.Context, ident Identity) (string, error) {
	path, err := svc.repo.GetProfilePicture(ctx, ident.ID)
	if err != nil {
		return "", err
	}
	if path == "" {
		return core.Conf.Uploads.BaseURL + "/profile_pictures/default.jpg", nil
	}
	return path, nil
}

func (svc *Service) SetProfilePicture(ctx context.Context, ident Identity, userID int, path string) error {
	if !ident.IsAdmin() && ident.ID != userID {
		return core.NewPermissionError("")
	}
	return svc.repo.SetProfilePicture(ctx, userID, path)
}

func (svc *Service) DeleteProfilePicture(ctx context.Context, ident Identity, userID int) error {
	if !ident.IsAdmin() && ident.ID != userID {
		return core.NewPermissionError("")
	}
	return svc.repo.ClearProfilePicture(ctx, userID)
}
