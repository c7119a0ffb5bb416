package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/organization"
)

// AggregationError reports that the data of a dashboard could not be read.
type AggregationError struct {
	OrganizationID string
	Err            error
}

func (err AggregationError) Error() string {
	return "computing dashboard of organization " + err.OrganizationID + ": " + err.Err.Error()
}

func (err AggregationError) Unwrap() error { return err.Err }

// Summary is everything the dashboard of one organization shows.
type Summary struct {
	OrganizationID string       `json:"organization_id"`
	TotalStudents  int          `json:"total_students"`
	Gender         Distribution `json:"gender"`
	Grade          Distribution `json:"grade"`
	Age            Distribution `json:"age"`
	AbsenceTrend   Distribution `json:"absence_trend"`
	Year           int          `json:"year"`
	GeneratedAt    time.Time    `json:"generated_at"`
}

type (
	Service interface {
		// Compute aggregates a consistent snapshot of the organization's students and attendance.
		Compute(ctx context.Context, organizationID string) (Summary, error)
	}

	service struct {
		db      core.DB
		repo    attendance.Repository
		orgSvc  organization.Service
		nowFunc func() time.Time
	}

	Option func(svc *service)
)

var _ Service = (*service)(nil) // interface compliance check

// WithClock sets what "now" is, which decides ages and the year of the absence trend.
func WithClock(now func() time.Time) Option {
	return func(svc *service) { svc.nowFunc = now }
}

func NewService(db core.DB, repo attendance.Repository, orgSvc organization.Service, opts ...Option) Service {
	svc := &service{db: db, repo: repo, orgSvc: orgSvc, nowFunc: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *service) Compute(ctx context.Context, organizationID string) (Summary, error) {
	org, err := svc.orgSvc.Get(ctx, organizationID)
	if err != nil {
		if errors.Cause(err) == organization.ErrNotFound {
			return Summary{}, errors.Wrap(err, "getting organization")
		}
		return Summary{}, &AggregationError{OrganizationID: organizationID, Err: errors.Wrap(err, "getting organization")}
	}

	now := svc.nowFunc().UTC()
	today := core.DateOf(now)
	absent := false

	var students []attendance.Student
	var absences []attendance.Record
	err = core.RunInTx(ctx, svc.db, core.ReadSnapshot, func(tx core.DBTransactor) error {
		var err error
		if students, err = svc.repo.QueryStudents(ctx, org.ID, tx); err != nil {
			return errors.Wrap(err, "querying students")
		}
		absences, err = svc.repo.QueryRecords(ctx, attendance.RecordFilter{
			OrganizationID: org.ID,
			From:           time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			To:             time.Date(today.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC),
			Present:        &absent,
		}, tx)
		return errors.Wrap(err, "querying absences")
	})
	if err != nil {
		return Summary{}, &AggregationError{OrganizationID: org.ID, Err: err}
	}

	return Summary{
		OrganizationID: org.ID,
		TotalStudents:  len(students),
		Gender:         GenderDistribution(students),
		Grade:          GradeDistribution(students),
		Age:            AgeDistribution(students, today),
		AbsenceTrend:   MonthlyAbsenceTrend(absences, today),
		Year:           today.Year(),
		GeneratedAt:    now,
	}, nil
}
