package attendance

import (
	"context"
	"errors"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

var (
	ErrAssistanceNotFound = errors.New("assistance record not found")
	ErrSanctionNotFound   = errors.New("sanction not found")
)

type (
	Repository interface {
		FilterAssistances(ctx context.Context, ident user.Identity, filter AssistanceFilter) ([]Assistance, error)
		FilterSanctions(ctx context.Context, ident user.Identity, filter SanctionFilter) ([]Sanction, error)

		// PreceptorOverseesStudent reports whether the student's course is
		// presided by the preceptor.
		PreceptorOverseesStudent(ctx context.Context, preceptorID, studentID int) (bool, error)
		PreceptorOverseesAssistance(ctx context.Context, preceptorID, assistanceID int) (bool, error)
		PreceptorOverseesSanction(ctx context.Context, preceptorID, sanctionID int) (bool, error)

		CreateAssistance(ctx context.Context, a Assistance) (Assistance, error)
		UpdateAssistance(ctx context.Context, id int, ua UpdateAssistance) error
		DeleteAssistance(ctx context.Context, id int) error

		CreateSanction(ctx context.Context, s Sanction) (Sanction, error)
		UpdateSanction(ctx context.Context, id int, us UpdateSanction) error
		DeleteSanction(ctx context.Context, id int) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) FilterAssistances(ctx context.Context, ident user.Identity, filter AssistanceFilter) ([]Assistance, error) {
	return svc.repo.FilterAssistances(ctx, ident, filter)
}

func (svc *Service) FilterSanctions(ctx context.Context, ident user.Identity, filter SanctionFilter) ([]Sanction, error) {
	filter.Clean()
	return svc.repo.FilterSanctions(ctx, ident, filter)
}

// CreateAssistance records a presence entry. Only admin, or the preceptor
// presiding the student's course, may write attendance.
func (svc *Service) CreateAssistance(ctx context.Context, ident user.Identity, na NewAssistance) (Assistance, error) {
	if err := na.Validate(); err != nil {
		return Assistance{}, err
	}
	if err := svc.authorizeStudent(ctx, ident, na.StudentID); err != nil {
		return Assistance{}, err
	}
	return svc.repo.CreateAssistance(ctx, Assistance{
		StudentID: na.StudentID,
		Presence:  *na.Presence,
		Date:      na.Date,
	})
}

func (svc *Service) UpdateAssistance(ctx context.Context, ident user.Identity, id int, ua UpdateAssistance) error {
	if ua.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	if err := svc.authorizeAssistance(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.UpdateAssistance(ctx, id, ua)
}

func (svc *Service) DeleteAssistance(ctx context.Context, ident user.Identity, id int) error {
	if err := svc.authorizeAssistance(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssistance(ctx, id)
}

func (svc *Service) CreateSanction(ctx context.Context, ident user.Identity, ns NewSanction) (Sanction, error) {
	if err := ns.Validate(); err != nil {
		return Sanction{}, err
	}
	if err := svc.authorizeStudent(ctx, ident, ns.StudentID); err != nil {
		return Sanction{}, err
	}
	s := Sanction{
		StudentID: ns.StudentID,
		Kind:      ns.Kind,
		Quantity:  ns.Quantity,
		Date:      ns.Date,
	}
	if ns.Description != "" {
		s.Description.SetValid(ns.Description)
	}
	return svc.repo.CreateSanction(ctx, s)
}

func (svc *Service) UpdateSanction(ctx context.Context, ident user.Identity, id int, us UpdateSanction) error {
	if us.IsEmpty() {
		return core.NewValidationError(errors.New("no fields to update"))
	}
	if err := svc.authorizeSanction(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.UpdateSanction(ctx, id, us)
}

func (svc *Service) DeleteSanction(ctx context.Context, ident user.Identity, id int) error {
	if err := svc.authorizeSanction(ctx, ident, id); err != nil {
		return err
	}
	return svc.repo.DeleteSanction(ctx, id)
}

func (svc *Service) authorizeStudent(ctx context.Context, ident user.Identity, studentID int) error {
	return svc.authorize(ctx, ident, func(ctx context.Context) (bool, error) {
		return svc.repo.PreceptorOverseesStudent(ctx, ident.ID, studentID)
	})
}

func (svc *Service) authorizeAssistance(ctx context.Context, ident user.Identity, id int) error {
	return svc.authorize(ctx, ident, func(ctx context.Context) (bool, error) {
		return svc.repo.PreceptorOverseesAssistance(ctx, ident.ID, id)
	})
}

func (svc *Service) authorizeSanction(ctx context.Context, ident user.Identity, id int) error {
	return svc.authorize(ctx, ident, func(ctx context.Context) (bool, error) {
		return svc.repo.PreceptorOverseesSanction(ctx, ident.ID, id)
	})
}

func (svc *Service) authorize(ctx context.Context, ident user.Identity, oversees func(context.Context) (bool, error)) error {
	switch {
	case ident.IsAdmin():
		return nil
	case ident.IsPreceptor():
		ok, err := oversees(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return core.NewPermissionError("")
		}
		return nil
	}
	return core.NewPermissionError("")
}
