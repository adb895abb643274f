package subject

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
)

// Subject message kinds.
const (
	MessageKindMessage MessageKind = "message"
	MessageKindLink    MessageKind = "link"
	MessageKindFile    MessageKind = "file"
)

type MessageKind string

func (k MessageKind) IsValid() bool {
	switch k {
	case MessageKindMessage, MessageKindLink, MessageKindFile:
		return true
	}
	return false
}

type Subject struct {
	ID         int    `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	TeacherID  int    `json:"teacher_id" db:"teacher_id"`
	CourseID   int    `json:"course_id" db:"course_id"`
	CourseName string `json:"course_name" db:"course_name"`
}

// Message is a per-subject announcement: inline text, a link, or an
// uploaded file reference.
type Message struct {
	ID        int         `json:"id" db:"id"`
	SubjectID int         `json:"subject_id" db:"subject_id"`
	SenderID  int         `json:"sender_id" db:"sender_id"`
	Title     string      `json:"title" db:"title"`
	Content   string      `json:"content" db:"content"`
	Kind      MessageKind `json:"kind" db:"kind"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

type NewMessage struct {
	SubjectID int         `json:"subject_id" validate:"required"`
	Title     string      `json:"title"`
	Content   string      `json:"content" validate:"required"`
	Kind      MessageKind `json:"kind" validate:"required"`
}

func (nm *NewMessage) Validate() error {
	nm.Title = core.CleanString(nm.Title)
	if err := core.Validate.Struct(nm); err != nil {
		return err
	}
	if !nm.Kind.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown subject message kind"})
	}
	return nil
}

// UpdateMessage is a partial patch applied via bound parameters only.
type UpdateMessage struct {
	Title   null.String `json:"title"`
	Content null.String `json:"content"`
	Kind    null.String `json:"kind"`
}

func (um UpdateMessage) IsEmpty() bool {
	return !um.Title.Valid && !um.Content.Valid && !um.Kind.Valid
}

func (um UpdateMessage) Validate() error {
	if um.Kind.Valid && !MessageKind(um.Kind.String).IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown subject message kind"})
	}
	return nil
}

type QueryFilter struct {
	SubjectID null.Int    `query:"subject_id"`
	CourseID  null.Int    `query:"course_id"`
	TeacherID null.Int    `query:"teacher_id"`
	Name      null.String `query:"name"`
}

func (qf *QueryFilter) Clean() {
	if qf.Name.Valid {
		qf.Name.String = core.CleanString(qf.Name.String)
	}
}

type MessageFilter struct {
	MessageID null.Int `query:"id"`
	SubjectID null.Int `query:"subject_id"`
	SenderID  null.Int `query:"sender_id"`
}
