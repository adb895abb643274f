package message

import (
	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
)

// Message is a broadcast announcement fanned out to a set of courses.
type Message struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	SenderID  int       `json:"sender_id" db:"sender_id"`
	CreatedAt null.Time `json:"created_at" db:"created_at"`
}

type NewMessage struct {
	Title     string `json:"title" validate:"required"`
	Message   string `json:"message" validate:"required"`
	CourseIDs []int  `json:"courses" validate:"required,min=1,dive,gt=0"`
}

func (nm *NewMessage) Validate() error {
	nm.Title = core.CleanString(nm.Title)
	return core.Validate.Struct(nm)
}

// UpdateMessage is a partial patch applied via bound parameters only.
type UpdateMessage struct {
	Title   null.String `json:"title"`
	Message null.String `json:"message"`
}

func (um UpdateMessage) IsEmpty() bool {
	return !um.Title.Valid && !um.Message.Valid
}

type QueryFilter struct {
	CourseID null.Int    `query:"course_id"`
	SenderID null.Int    `query:"sender_id"`
	Title    null.String `query:"title"`
}

func (qf *QueryFilter) Clean() {
	if qf.Title.Valid {
		qf.Title.String = core.CleanString(qf.Title.String)
	}
}
