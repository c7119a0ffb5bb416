package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/organization"
	"github.com/trezcool/asistencia/storage/database"
)

// CSVHeader is the header row of a valid attendance file.
const CSVHeader = "first_name,last_name,birth_date,gender,grade,attendance_date,attendance_status\n"

// PrepareDB returns a freshly migrated and emptied Postgres database, or skips the test
// when TEST_DATABASE_URL is not set.
func PrepareDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	sqlxDB, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db := database.New(sqlxDB)
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.Exec("TRUNCATE attendance, student, organization CASCADE"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateOrganization(t *testing.T, repo organization.Repository, code, name string, createdAt ...time.Time) organization.Organization {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	org, err := repo.CreateOrganization(context.Background(), organization.Organization{
		Code:         code,
		Name:         name,
		ContactEmail: code + "@test.edu",
		CreatedAt:    tstamp,
	})
	if err != nil {
		t.Fatalf("CreateOrganization() failed: %v", err)
	}
	return org
}

// testLogger writes through t.Log, so output only shows for failing or verbose tests.
type testLogger struct {
	t testing.TB
}

func NewLogger(t testing.TB) core.Logger {
	return &testLogger{t: t}
}

func (l *testLogger) log(level, msg string, args ...interface{}) {
	l.t.Helper()
	if len(args) > 0 {
		msg = fmt.Sprintf("%s %v", msg, args)
	}
	l.t.Log(level + ": " + msg)
}

func (l *testLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args...) }
func (l *testLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args...) }
func (l *testLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args...) }
func (l *testLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args...) }
func (l *testLogger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args...) }
