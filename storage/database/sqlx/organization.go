package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/organization"
)

const organizationColumns = `"id", "code", "name", "location", "contact_email", "created_at"`

type organizationRow struct {
	ID           string      `db:"id"`
	Code         string      `db:"code"`
	Name         string      `db:"name"`
	Location     null.String `db:"location"`
	ContactEmail null.String `db:"contact_email"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (row organizationRow) organization() organization.Organization {
	return organization.Organization{
		ID:           row.ID,
		Code:         row.Code,
		Name:         row.Name,
		Location:     row.Location.String,
		ContactEmail: row.ContactEmail.String,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

type organizationRepository struct {
	repository
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(exec core.DBExecutor) organization.Repository {
	return &organizationRepository{repository{exec: exec}}
}

func (repo organizationRepository) CheckCodeUniqueness(ctx context.Context, code string, exec ...core.DBExecutor) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM "organization" WHERE "code" = $1)`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q, code); err != nil {
		return core.NewStorageError("checking organization code uniqueness", err)
	}
	if exists {
		return organization.ErrCodeExists
	}
	return nil
}

func (repo organizationRepository) CreateOrganization(ctx context.Context, org organization.Organization, exec ...core.DBExecutor) (organization.Organization, error) {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now()
	}

	var row organizationRow
	q := `INSERT INTO "organization" (` + organizationColumns + `) VALUES ($1, $2, $3, $4, $5, $6) RETURNING ` + organizationColumns
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &row, q,
		org.ID, org.Code, org.Name,
		null.NewString(org.Location, org.Location != ""),
		null.NewString(org.ContactEmail, org.ContactEmail != ""),
		org.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "organization_code_key") {
			return organization.Organization{}, organization.ErrCodeExists
		}
		return organization.Organization{}, core.NewStorageError("inserting organization", err)
	}
	return row.organization(), nil
}

func (repo organizationRepository) GetOrganization(ctx context.Context, filter organization.GetFilter, exec ...core.DBExecutor) (organization.Organization, error) {
	var q string
	var arg string

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return organization.Organization{}, organization.ErrNotFound
		}
		q = `SELECT ` + organizationColumns + ` FROM "organization" WHERE "id" = $1`
		arg = filter.ID
	case filter.Code != "":
		q = `SELECT ` + organizationColumns + ` FROM "organization" WHERE "code" = $1`
		arg = filter.Code
	case filter.NameOrCode != "":
		// code matches first, then oldest
		q = `SELECT ` + organizationColumns + ` FROM "organization"
			WHERE lower("code") = lower($1) OR lower("name") = lower($1)
			ORDER BY lower("code") = lower($1) DESC, "created_at"
			LIMIT 1`
		arg = filter.NameOrCode
	default:
		return organization.Organization{}, organization.ErrNotFound
	}

	var row organizationRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, arg); err != nil {
		return organization.Organization{}, trapNoRowsErr(err, organization.ErrNotFound, "getting organization")
	}
	return row.organization(), nil
}
