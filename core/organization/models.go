package organization

import (
	"context"
	"time"

	"github.com/trezcool/asistencia/core"
)

// Organization is a school owning students and their attendance records.
type Organization struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"` // national registry code (e.g. DANE)
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// NewOrganization contains information needed to register a new Organization.
type NewOrganization struct {
	Code         string `json:"code" validate:"required,max=225"`
	Name         string `json:"name" validate:"required,max=255"`
	Location     string `json:"location" validate:"max=255"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

func (no *NewOrganization) Clean() {
	no.Code = core.CleanString(no.Code)
	no.Name = core.CleanString(no.Name)
	no.Location = core.CleanString(no.Location)
	no.ContactEmail = core.CleanString(no.ContactEmail, true /* lower */)
}

// Validate cleans and validates no, then checks that its code is not taken yet.
func (no *NewOrganization) Validate(ctx context.Context, svc Service) error {
	no.Clean()
	if err := core.Validate.Struct(no); err != nil {
		if flds := core.FieldErrors(err); flds != nil {
			return core.NewValidationError(nil, flds...)
		}
		return err
	}
	return svc.CheckCodeUniqueness(ctx, no.Code)
}
