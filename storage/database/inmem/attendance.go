package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func recordKey(rec attendance.Record) string {
	return rec.StudentID + "|" + rec.Date.Format("2006-01-02")
}

func sameStudent(st attendance.Student, key attendance.StudentKey) bool {
	return st.OrganizationID == key.OrganizationID &&
		st.FirstName == key.FirstName &&
		st.LastName == key.LastName &&
		st.BirthDate.Equal(key.BirthDate)
}

func (repo *attendanceRepository) findStudent(key attendance.StudentKey) (attendance.Student, bool) {
	for _, st := range repo.db.tables.students {
		if sameStudent(st, key) {
			return st, true
		}
	}
	return attendance.Student{}, false
}

func (repo *attendanceRepository) GetStudent(_ context.Context, key attendance.StudentKey, exec ...core.DBExecutor) (attendance.Student, error) {
	defer repo.db.acquire(exec)()

	if st, ok := repo.findStudent(key); ok {
		return st, nil
	}
	return attendance.Student{}, attendance.ErrStudentNotFound
}

func (repo *attendanceRepository) CreateStudentIfAbsent(_ context.Context, st attendance.Student, exec ...core.DBExecutor) (attendance.Student, bool, error) {
	defer repo.db.acquire(exec)()

	if existing, ok := repo.findStudent(st.Key()); ok {
		return existing, false, nil
	}
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	repo.db.tables.students[st.ID] = st
	return st, true, nil
}

func (repo *attendanceRepository) UpsertRecord(_ context.Context, rec attendance.Record, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.acquire(exec)()

	if _, ok := repo.db.tables.students[rec.StudentID]; !ok {
		return false, core.NewStorageError("upserting attendance", attendance.ErrStudentNotFound)
	}

	key := recordKey(rec)
	if existing, ok := repo.db.tables.records[key]; ok {
		existing.Present = rec.Present
		existing.UpdatedAt = rec.UpdatedAt
		repo.db.tables.records[key] = existing
		return false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	repo.db.tables.records[key] = rec
	return true, nil
}

func (repo *attendanceRepository) QueryStudents(_ context.Context, organizationID string, exec ...core.DBExecutor) ([]attendance.Student, error) {
	defer repo.db.acquire(exec)()

	students := make([]attendance.Student, 0)
	for _, st := range repo.db.tables.students {
		if st.OrganizationID == organizationID {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.BirthDate.Before(b.BirthDate)
	})
	return students, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.RecordFilter, exec ...core.DBExecutor) ([]attendance.Record, error) {
	defer repo.db.acquire(exec)()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.tables.records {
		st, ok := repo.db.tables.students[rec.StudentID]
		if !ok || st.OrganizationID != filter.OrganizationID {
			continue
		}
		if !filter.From.IsZero() && rec.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !rec.Date.Before(filter.To) {
			continue
		}
		if filter.Present != nil && rec.Present != *filter.Present {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}
