package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/escolarhq/escolar/core"
)

// Roles. A user may hold several; one is chosen at login and carried
// in the session for the lifetime of the token.
const (
	RoleAdmin     Role = "admin"
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
	RolePreceptor Role = "preceptor"
	RoleFather    Role = "father"
)

var AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RolePreceptor, RoleFather}

type Role string

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.IsValid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Identity is the authenticated (user, role) pair for one request.
// It is rebuilt from the session token on every call and never cached.
type Identity struct {
	ID   int  `json:"id"`
	Role Role `json:"role"`
}

func (i Identity) IsAdmin() bool     { return i.Role == RoleAdmin }
func (i Identity) IsTeacher() bool   { return i.Role == RoleTeacher }
func (i Identity) IsStudent() bool   { return i.Role == RoleStudent }
func (i Identity) IsPreceptor() bool { return i.Role == RolePreceptor }
func (i Identity) IsFather() bool    { return i.Role == RoleFather }

type User struct {
	ID           int         `json:"id" db:"id"`
	Email        string      `json:"email" db:"email"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	Photo        null.String `json:"photo" db:"photo"`
	CourseID     null.Int    `json:"course_id" db:"course_id"`
	LastLogin    null.Time   `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// PublicUser is the listing shape exposed to other users.
type PublicUser struct {
	ID       int         `json:"id" db:"id"`
	Photo    null.String `json:"photo" db:"photo"`
	CourseID null.Int    `json:"course_id" db:"course_id"`
}

type PersonalData struct {
	UserID      int       `json:"user_id" db:"user_id"`
	FullName    string    `json:"full_name" db:"full_name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Address     string    `json:"address" db:"address"`
	BirthDate   time.Time `json:"birth_date" db:"birth_date"`
}

type PublicPersonalData struct {
	FullName string      `json:"full_name" db:"full_name"`
	Photo    null.String `json:"photo" db:"photo"`
}

// Recipient is a notification target resolved from enrolment joins.
type Recipient struct {
	Email    string `db:"email"`
	FullName string `db:"full_name"`
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Email       string    `json:"email" validate:"required,email"`
	Password    string    `json:"password" validate:"required,min=8"`
	Role        Role      `json:"role" validate:"required"`
	FullName    string    `json:"full_name" validate:"required"`
	PhoneNumber string    `json:"phone_number"`
	Address     string    `json:"address"`
	BirthDate   time.Time `json:"birth_date"`
	CourseID    null.Int  `json:"course_id"`
}

func (nu *NewUser) Validate() error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	if !nu.Role.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: ErrUnknownRole.Error()})
	}
	return nil
}

// Credentials authenticates a user into one of their roles.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required"`
}

func (c *Credentials) Validate() error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	if err := core.Validate.Struct(c); err != nil {
		return err
	}
	if !c.Role.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: ErrUnknownRole.Error()})
	}
	return nil
}

// UpdatePersonalData is a partial patch; unset fields are left untouched.
type UpdatePersonalData struct {
	FullName    null.String `json:"full_name"`
	PhoneNumber null.String `json:"phone_number"`
	Address     null.String `json:"address"`
	BirthDate   null.Time   `json:"birth_date"`
}

func (up UpdatePersonalData) IsEmpty() bool {
	return !up.FullName.Valid && !up.PhoneNumber.Valid && !up.Address.Valid && !up.BirthDate.Valid
}

// QueryFilter narrows user listings. Name is a case-insensitive
// substring match against personal_data.full_name.
type QueryFilter struct {
	CourseID null.Int    `query:"course_id"`
	UserID   null.Int    `query:"user_id"`
	Name     null.String `query:"name"`
}

func (qf *QueryFilter) Clean() {
	if qf.Name.Valid {
		qf.Name.String = core.CleanString(qf.Name.String)
	}
}
