package grade

import (
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
)

// Grade kinds.
const (
	KindNumerical  Kind = "numerical"
	KindConceptual Kind = "conceptual"
	KindPercentage Kind = "percentage"
)

type Kind string

func (k Kind) IsValid() bool {
	switch k {
	case KindNumerical, KindConceptual, KindPercentage:
		return true
	}
	return false
}

type Grade struct {
	ID           int             `json:"id" db:"id"`
	Description  null.String     `json:"description" db:"description"`
	Grade        decimal.Decimal `json:"grade" db:"grade"`
	StudentID    int             `json:"student_id" db:"student_id"`
	SubjectID    int             `json:"subject_id" db:"subject_id"`
	AssessmentID null.Int        `json:"assessment_id" db:"assessment_id"`
	Kind         null.String     `json:"kind" db:"kind"`
	CreatedAt    null.Time       `json:"created_at" db:"created_at"`
}

type NewGrade struct {
	SubjectID    int             `json:"subject_id" validate:"required"`
	AssessmentID null.Int        `json:"assessment_id"`
	StudentID    int             `json:"student_id" validate:"required"`
	Kind         Kind            `json:"kind" validate:"required"`
	Description  string          `json:"description"`
	Grade        decimal.Decimal `json:"grade" validate:"required"`
}

func (ng *NewGrade) Validate() error {
	ng.Description = core.CleanString(ng.Description)
	if err := core.Validate.Struct(ng); err != nil {
		return err
	}
	if !ng.Kind.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown grade kind"})
	}
	return nil
}

// UpdateGrade is a partial patch applied via bound parameters only.
type UpdateGrade struct {
	Description  null.String         `json:"description"`
	Grade        decimal.NullDecimal `json:"grade"`
	StudentID    null.Int            `json:"student_id"`
	SubjectID    null.Int            `json:"subject_id"`
	AssessmentID null.Int            `json:"assessment_id"`
	Kind         null.String         `json:"kind"`
}

func (ug UpdateGrade) IsEmpty() bool {
	return !ug.Description.Valid && !ug.Grade.Valid && !ug.StudentID.Valid &&
		!ug.SubjectID.Valid && !ug.AssessmentID.Valid && !ug.Kind.Valid
}

func (ug UpdateGrade) Validate() error {
	if ug.Kind.Valid && !Kind(ug.Kind.String).IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "unknown grade kind"})
	}
	return nil
}

type QueryFilter struct {
	SubjectID   null.Int    `query:"subject_id"`
	StudentID   null.Int    `query:"student_id"`
	Description null.String `query:"description"`
}

func (qf *QueryFilter) Clean() {
	if qf.Description.Valid {
		qf.Description.String = core.CleanString(qf.Description.String)
	}
}
