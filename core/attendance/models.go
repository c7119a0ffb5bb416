package attendance

import (
	"time"

	"github.com/trezcool/asistencia/core/csvimport"
)

// Student belongs to exactly one organization; its identity is StudentKey, not its ID.
type Student struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	BirthDate      time.Time `json:"birth_date"` // UTC calendar day
	Gender         string    `json:"gender"`     // free text, never normalized
	Grade          string    `json:"grade"`      // free text, never normalized
	CreatedAt      time.Time `json:"created_at"` // UTC
}

func (s Student) Key() StudentKey {
	return StudentKey{
		OrganizationID: s.OrganizationID,
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		BirthDate:      s.BirthDate,
	}
}

// StudentKey is the identity tuple used to deduplicate students across imports.
type StudentKey struct {
	OrganizationID string
	FirstName      string
	LastName       string
	BirthDate      time.Time
}

// Record is the attendance of one student on one day; there is at most one per (StudentID, Date).
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"` // UTC calendar day
	Present   bool      `json:"present"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// RecordFilter selects the attendance records of one organization.
type RecordFilter struct {
	OrganizationID string
	From           time.Time // inclusive; ignored when zero
	To             time.Time // exclusive; ignored when zero
	Present        *bool
}

// IngestResult summarizes one file import. Partial success is expected: skipped rows are listed in RowErrors.
type IngestResult struct {
	ImportID        string               `json:"import_id"`
	Created         int                  `json:"created"` // attendance records
	Updated         int                  `json:"updated"` // attendance records
	StudentsCreated int                  `json:"students_created"`
	RowErrors       []csvimport.RowError `json:"row_errors"`
}
