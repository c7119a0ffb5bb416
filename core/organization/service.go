package organization

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
)

var (
	// errors
	ErrNotFound   = errors.New("organization not found")
	ErrCodeExists = errors.New("an organization with this code already exists")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string, exec ...core.DBExecutor) error
		CreateOrganization(ctx context.Context, org Organization, exec ...core.DBExecutor) (Organization, error)
		GetOrganization(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Organization, error)
	}

	// GetFilter selects one Organization; the first non-empty field wins.
	GetFilter struct {
		ID   string
		Code string
		// NameOrCode does a case-insensitive match on either Organization.Name or Organization.Code.
		NameOrCode string
	}

	Service interface {
		CheckCodeUniqueness(ctx context.Context, code string) error
		Register(ctx context.Context, no NewOrganization) (Organization, error)
		Get(ctx context.Context, id string) (Organization, error)
		GetByCode(ctx context.Context, code string) (Organization, error)
		Lookup(ctx context.Context, nameOrCode string) (Organization, error)
	}

	service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo, nowFunc: time.Now}
}

func (svc *service) CheckCodeUniqueness(ctx context.Context, code string) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates an Organization from an already validated NewOrganization.
func (svc *service) Register(ctx context.Context, no NewOrganization) (Organization, error) {
	org := Organization{
		Code:         no.Code,
		Name:         no.Name,
		Location:     no.Location,
		ContactEmail: no.ContactEmail,
		CreatedAt:    svc.nowFunc().UTC(),
	}
	org, err := svc.repo.CreateOrganization(ctx, org)
	if err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Organization{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Organization{}, errors.Wrap(err, "creating organization")
	}
	return org, nil
}

func (svc *service) Get(ctx context.Context, id string) (Organization, error) {
	return svc.repo.GetOrganization(ctx, GetFilter{ID: core.CleanString(id)})
}

func (svc *service) GetByCode(ctx context.Context, code string) (Organization, error) {
	return svc.repo.GetOrganization(ctx, GetFilter{Code: core.CleanString(code)})
}

func (svc *service) Lookup(ctx context.Context, nameOrCode string) (Organization, error) {
	return svc.repo.GetOrganization(ctx, GetFilter{NameOrCode: core.CleanString(nameOrCode)})
}
