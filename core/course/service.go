package course

import (
	"context"
	"errors"

	"github.com/escolarhq/escolar/core/user"
)

var ErrNotFound = errors.New("course not found")

type (
	Repository interface {
		// FilterCourses returns the courses the caller may see:
		// admin all, teacher those with a subject they teach, student their
		// own, preceptor those they preside, father their children's.
		FilterCourses(ctx context.Context, ident user.Identity) ([]Course, error)
		FilterTimetables(ctx context.Context, ident user.Identity, filter TimetableFilter) ([]Timetable, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Filter(ctx context.Context, ident user.Identity) ([]Course, error) {
	return svc.repo.FilterCourses(ctx, ident)
}

func (svc *Service) FilterTimetables(ctx context.Context, ident user.Identity, filter TimetableFilter) ([]Timetable, error) {
	filter.Clean()
	return svc.repo.FilterTimetables(ctx, ident, filter)
}
