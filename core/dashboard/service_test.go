package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/dashboard"
	"github.com/trezcool/asistencia/core/organization"
	"github.com/trezcool/asistencia/services/email"
	"github.com/trezcool/asistencia/storage/database/inmem"
	"github.com/trezcool/asistencia/tests"
)

var now = time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

type brokenRepository struct {
	attendance.Repository
}

func (brokenRepository) QueryRecords(context.Context, attendance.RecordFilter, ...core.DBExecutor) ([]attendance.Record, error) {
	return nil, core.NewStorageError("querying attendance", errors.New("canceling statement due to statement timeout"))
}

type brokenOrganizationRepository struct {
	organization.Repository
}

func (brokenOrganizationRepository) GetOrganization(context.Context, organization.GetFilter, ...core.DBExecutor) (organization.Organization, error) {
	return organization.Organization{}, core.NewStorageError("getting organization", errors.New("connection refused"))
}

func TestService_Compute(t *testing.T) {
	db := inmemdb.Open()
	logger := testutil.NewLogger(t)
	orgRepo := inmemdb.NewOrganizationRepository(db)
	repo := inmemdb.NewAttendanceRepository(db)
	orgSvc := organization.NewService(orgRepo)
	attSvc := attendance.NewService(db, repo, orgSvc, emailsvc.NewConsoleServiceMock(&core.Config{}, logger), logger)
	svc := dashboard.NewService(db, repo, orgSvc, dashboard.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	org := testutil.CreateOrganization(t, orgRepo, "ORG1", "Colegio Uno")
	other := testutil.CreateOrganization(t, orgRepo, "ORG2", "Colegio Dos")

	t.Run("empty organization", func(t *testing.T) {
		sum, err := svc.Compute(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, org.ID, sum.OrganizationID)
		assert.Zero(t, sum.TotalStudents)
		assert.Empty(t, sum.Gender)
		assert.Empty(t, sum.Grade)
		assert.Len(t, sum.Age, 4)
		assert.Len(t, sum.AbsenceTrend, 12)
		assert.Equal(t, 2024, sum.Year)
		assert.Equal(t, now, sum.GeneratedAt)
	})

	t.Run("ingested file", func(t *testing.T) {
		_, err := attSvc.IngestFile(ctx, org.ID, []byte(testutil.CSVHeader+
			"Ana,Ruiz,2014-03-01,F,5,2024-05-01,Presente\n"+
			"Ana,Ruiz,2014-03-01,F,5,2024-05-02,Ausente\n"))
		require.NoError(t, err)
		_, err = attSvc.IngestFile(ctx, other.ID, []byte(testutil.CSVHeader+
			"Luis,Gómez,2008-11-20,M,11,2024-05-02,Ausente\n"))
		require.NoError(t, err)

		sum, err := svc.Compute(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.TotalStudents)
		assert.Equal(t, map[string]int{"F": 1}, sum.Gender.Map())
		assert.Equal(t, map[string]int{"5": 1}, sum.Grade.Map())
		assert.Equal(t, map[string]int{"0-8": 0, "9-11": 1, "12-14": 0, "15-18": 0}, sum.Age.Map(), "Ana is 10")
		require.Len(t, sum.AbsenceTrend, 12)
		for _, b := range sum.AbsenceTrend {
			if b.Label == "5" {
				assert.Equal(t, 1, b.Count)
			} else {
				assert.Zero(t, b.Count, "month %s", b.Label)
			}
		}
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := svc.Compute(ctx, "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, organization.ErrNotFound, errors.Cause(err))
	})

	t.Run("storage failure", func(t *testing.T) {
		broken := dashboard.NewService(db, brokenRepository{repo}, orgSvc)
		_, err := broken.Compute(ctx, org.ID)
		require.Error(t, err)

		aggErr, ok := errors.Cause(err).(*dashboard.AggregationError)
		require.True(t, ok, "want *dashboard.AggregationError, got %T", err)
		assert.Equal(t, org.ID, aggErr.OrganizationID)
		assert.True(t, core.IsStorageError(aggErr.Err))
	})

	t.Run("organization lookup storage error", func(t *testing.T) {
		broken := dashboard.NewService(db, repo, organization.NewService(brokenOrganizationRepository{orgRepo}))
		_, err := broken.Compute(ctx, org.ID)
		require.Error(t, err)

		aggErr, ok := errors.Cause(err).(*dashboard.AggregationError)
		require.True(t, ok, "want *dashboard.AggregationError, got %T", err)
		assert.Equal(t, org.ID, aggErr.OrganizationID)
		assert.True(t, core.IsStorageError(aggErr.Err))
	})
}
