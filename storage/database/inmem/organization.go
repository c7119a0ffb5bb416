package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/organization"
)

type organizationRepository struct {
	db *DB
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(db *DB) organization.Repository {
	return &organizationRepository{db: db}
}

func (repo *organizationRepository) CheckCodeUniqueness(_ context.Context, code string, exec ...core.DBExecutor) error {
	defer repo.db.acquire(exec)()

	for _, org := range repo.db.tables.organizations {
		if org.Code == code {
			return organization.ErrCodeExists
		}
	}
	return nil
}

func (repo *organizationRepository) CreateOrganization(_ context.Context, org organization.Organization, exec ...core.DBExecutor) (organization.Organization, error) {
	defer repo.db.acquire(exec)()

	for _, o := range repo.db.tables.organizations {
		if o.Code == org.Code {
			return organization.Organization{}, organization.ErrCodeExists
		}
	}
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	repo.db.tables.organizations[org.ID] = org
	return org, nil
}

func (repo *organizationRepository) GetOrganization(_ context.Context, filter organization.GetFilter, exec ...core.DBExecutor) (organization.Organization, error) {
	defer repo.db.acquire(exec)()

	switch {
	case filter.ID != "":
		if org, ok := repo.db.tables.organizations[filter.ID]; ok {
			return org, nil
		}
	case filter.Code != "":
		for _, org := range repo.db.tables.organizations {
			if org.Code == filter.Code {
				return org, nil
			}
		}
	case filter.NameOrCode != "":
		var matches []organization.Organization
		for _, org := range repo.db.tables.organizations {
			if strings.EqualFold(org.Code, filter.NameOrCode) || strings.EqualFold(org.Name, filter.NameOrCode) {
				matches = append(matches, org)
			}
		}
		if len(matches) > 0 {
			// code matches first, then oldest
			sort.Slice(matches, func(i, j int) bool {
				ci := strings.EqualFold(matches[i].Code, filter.NameOrCode)
				cj := strings.EqualFold(matches[j].Code, filter.NameOrCode)
				if ci != cj {
					return ci
				}
				return matches[i].CreatedAt.Before(matches[j].CreatedAt)
			})
			return matches[0], nil
		}
	}
	return organization.Organization{}, organization.ErrNotFound
}
