package course

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/escolarhq/escolar/core"
)

type Course struct {
	ID          int      `json:"id" db:"id"`
	Year        int      `json:"year" db:"year"`
	Division    string   `json:"division" db:"division"`
	Level       string   `json:"level" db:"level"`
	Shift       string   `json:"shift" db:"shift"`
	PreceptorID null.Int `json:"preceptor_id" db:"preceptor_id"`
	Name        string   `json:"name" db:"name"`
}

type Timetable struct {
	ID        int       `json:"id" db:"id"`
	CourseID  int       `json:"course_id" db:"course_id"`
	SubjectID int       `json:"subject_id" db:"subject_id"`
	Day       string    `json:"day" db:"day"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
}

type TimetableFilter struct {
	Day       null.String `query:"day"`
	SubjectID null.Int    `query:"subject_id"`
	TeacherID null.Int    `query:"teacher_id"`
	CourseID  null.Int    `query:"course_id"`
}

func (tf *TimetableFilter) Clean() {
	if tf.Day.Valid {
		tf.Day.String = core.CleanString(tf.Day.String, true /* lower */)
	}
}
