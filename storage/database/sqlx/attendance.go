package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
)

const (
	studentColumns = `"id", "organization_id", "first_name", "last_name", "birth_date", "gender", "grade", "created_at"`
	recordColumns  = `"id", "student_id", "date", "present", "updated_at"`
)

type studentRow struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	FirstName      string    `db:"first_name"`
	LastName       string    `db:"last_name"`
	BirthDate      time.Time `db:"birth_date"`
	Gender         string    `db:"gender"`
	Grade          string    `db:"grade"`
	CreatedAt      time.Time `db:"created_at"`
}

func (row studentRow) student() attendance.Student {
	return attendance.Student{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		BirthDate:      core.DateOf(row.BirthDate),
		Gender:         row.Gender,
		Grade:          row.Grade,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

type recordRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	Date      time.Time `db:"date"`
	Present   bool      `db:"present"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row recordRow) record() attendance.Record {
	return attendance.Record{
		ID:        row.ID,
		StudentID: row.StudentID,
		Date:      core.DateOf(row.Date),
		Present:   row.Present,
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type attendanceRepository struct {
	repository
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) attendance.Repository {
	return &attendanceRepository{repository{exec: exec}}
}

// dateArg binds t as a calendar day, whatever the session time zone.
func dateArg(t time.Time) string {
	return t.Format("2006-01-02")
}

func (repo attendanceRepository) GetStudent(ctx context.Context, key attendance.StudentKey, exec ...core.DBExecutor) (attendance.Student, error) {
	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM "student"
		WHERE "organization_id" = $1 AND "first_name" = $2 AND "last_name" = $3 AND "birth_date" = $4`
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &row, q,
		key.OrganizationID, key.FirstName, key.LastName, dateArg(key.BirthDate),
	)
	if err != nil {
		return attendance.Student{}, trapNoRowsErr(err, attendance.ErrStudentNotFound, "getting student")
	}
	return row.student(), nil
}

func (repo attendanceRepository) CreateStudentIfAbsent(ctx context.Context, st attendance.Student, exec ...core.DBExecutor) (attendance.Student, bool, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}

	var rows []studentRow
	q := `INSERT INTO "student" (` + studentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT "student_identity_key" DO NOTHING
		RETURNING ` + studentColumns
	err := sqlx.SelectContext(
		ctx, repo.getExec(exec), &rows, q,
		st.ID, st.OrganizationID, st.FirstName, st.LastName, dateArg(st.BirthDate), st.Gender, st.Grade, st.CreatedAt.UTC(),
	)
	if err != nil {
		return attendance.Student{}, false, core.NewStorageError("inserting student", err)
	}
	if len(rows) > 0 {
		return rows[0].student(), true, nil
	}

	// already there, possibly inserted by a concurrent import
	existing, err := repo.GetStudent(ctx, st.Key(), exec...)
	if err != nil {
		if err == attendance.ErrStudentNotFound {
			return attendance.Student{}, false, core.NewStorageError("getting conflicting student", err)
		}
		return attendance.Student{}, false, err
	}
	return existing, false, nil
}

func (repo attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	// xmax is 0 for freshly inserted row versions only
	var inserted bool
	q := `INSERT INTO "attendance" (` + recordColumns + `) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT "attendance_student_date_key"
		DO UPDATE SET "present" = EXCLUDED."present", "updated_at" = EXCLUDED."updated_at"
		RETURNING (xmax = 0) AS inserted`
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &inserted, q,
		rec.ID, rec.StudentID, dateArg(rec.Date), rec.Present, rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, core.NewStorageError("upserting attendance", err)
	}
	return inserted, nil
}

func (repo attendanceRepository) QueryStudents(ctx context.Context, organizationID string, exec ...core.DBExecutor) ([]attendance.Student, error) {
	if _, err := uuid.Parse(organizationID); err != nil {
		return []attendance.Student{}, nil
	}

	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM "student"
		WHERE "organization_id" = $1
		ORDER BY "last_name", "first_name", "birth_date"`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, organizationID); err != nil {
		return nil, core.NewStorageError("querying students", err)
	}

	students := make([]attendance.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter attendance.RecordFilter, exec ...core.DBExecutor) ([]attendance.Record, error) {
	if _, err := uuid.Parse(filter.OrganizationID); err != nil {
		return []attendance.Record{}, nil
	}

	args := []interface{}{filter.OrganizationID}
	where := []string{`s."organization_id" = $1`}
	addCond := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !filter.From.IsZero() {
		addCond(`a."date" >= $%d`, dateArg(filter.From))
	}
	if !filter.To.IsZero() {
		addCond(`a."date" < $%d`, dateArg(filter.To))
	}
	if filter.Present != nil {
		addCond(`a."present" = $%d`, *filter.Present)
	}

	var rows []recordRow
	q := `SELECT a."id", a."student_id", a."date", a."present", a."updated_at"
		FROM "attendance" a JOIN "student" s ON s."id" = a."student_id"
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY a."date", a."student_id"`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, core.NewStorageError("querying attendance", err)
	}

	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}
