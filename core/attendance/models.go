package attendance

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
)

// Assistance is a single daily presence record for a student.
type Assistance struct {
	ID        int       `json:"id" db:"id"`
	StudentID int       `json:"student_id" db:"student_id"`
	Presence  bool      `json:"presence" db:"presence"`
	Date      time.Time `json:"date" db:"date"`
}

type NewAssistance struct {
	StudentID int       `json:"student_id" validate:"required"`
	Presence  *bool     `json:"presence" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
}

func (na *NewAssistance) Validate() error {
	return core.Validate.Struct(na)
}

// UpdateAssistance is a partial patch applied via bound parameters only.
type UpdateAssistance struct {
	StudentID null.Int  `json:"student_id"`
	Presence  null.Bool `json:"presence"`
	Date      null.Time `json:"date"`
}

func (ua UpdateAssistance) IsEmpty() bool {
	return !ua.StudentID.Valid && !ua.Presence.Valid && !ua.Date.Valid
}

type AssistanceFilter struct {
	ID        null.Int  `query:"id"`
	StudentID null.Int  `query:"student_id"`
	Presence  null.Bool `query:"presence"`
	Date      null.Time `query:"date"`
}

// Sanction is a disciplinary record against a student.
type Sanction struct {
	ID          int         `json:"id" db:"id"`
	StudentID   int         `json:"student_id" db:"student_id"`
	Kind        string      `json:"sanction_type" db:"sanction_type"`
	Quantity    int         `json:"quantity" db:"quantity"`
	Description null.String `json:"description" db:"description"`
	Date        time.Time   `json:"date" db:"date"`
}

type NewSanction struct {
	StudentID   int       `json:"student_id" validate:"required"`
	Kind        string    `json:"sanction_type" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
}

func (ns *NewSanction) Validate() error {
	ns.Kind = core.CleanString(ns.Kind)
	ns.Description = core.CleanString(ns.Description)
	return core.Validate.Struct(ns)
}

// UpdateSanction is a partial patch applied via bound parameters only.
type UpdateSanction struct {
	StudentID   null.Int    `json:"student_id"`
	Kind        null.String `json:"sanction_type"`
	Quantity    null.Int    `json:"quantity"`
	Description null.String `json:"description"`
	Date        null.Time   `json:"date"`
}

func (us UpdateSanction) IsEmpty() bool {
	return !us.StudentID.Valid && !us.Kind.Valid && !us.Quantity.Valid &&
		!us.Description.Valid && !us.Date.Valid
}

type SanctionFilter struct {
	ID        null.Int    `query:"id"`
	StudentID null.Int    `query:"student_id"`
	Kind      null.String `query:"sanction_type"`
}

func (sf *SanctionFilter) Clean() {
	if sf.Kind.Valid {
		sf.Kind.String = core.CleanString(sf.Kind.String)
	}
}
