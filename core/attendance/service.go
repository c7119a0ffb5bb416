package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/csvimport"
	"github.com/trezcool/asistencia/core/organization"
)

var (
	// errors
	ErrStudentNotFound = errors.New("student not found")
)

type (
	// Repository persists students and attendance records.
	// Implementations report persistence failures as *core.StorageError.
	Repository interface {
		GetStudent(ctx context.Context, key StudentKey, exec ...core.DBExecutor) (Student, error)
		// CreateStudentIfAbsent inserts st unless a Student with the same StudentKey exists,
		// and returns the stored Student either way. An existing Student is never modified.
		CreateStudentIfAbsent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, bool, error)
		// UpsertRecord inserts rec, or overwrites the presence flag of the record with the same (StudentID, Date).
		UpsertRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (created bool, err error)
		QueryStudents(ctx context.Context, organizationID string, exec ...core.DBExecutor) ([]Student, error)
		QueryRecords(ctx context.Context, filter RecordFilter, exec ...core.DBExecutor) ([]Record, error)
	}

	Service interface {
		// Ingest applies every valid row to the organization's students and attendance, in a single transaction.
		// Row errors are returned in IngestResult; any other error means nothing was committed.
		Ingest(ctx context.Context, organizationID string, rows *csvimport.Reader) (IngestResult, error)
		// IngestFile parses data then ingests it.
		IngestFile(ctx context.Context, organizationID string, data []byte) (IngestResult, error)
		// NotifyImport mails the import summary to the organization's contact, if it has one.
		NotifyImport(ctx context.Context, organizationID, filename string, res IngestResult) error
	}

	service struct {
		db      core.DB
		repo    Repository
		orgSvc  organization.Service
		mailSvc core.EmailService
		logger  core.Logger
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	db core.DB,
	repo Repository,
	orgSvc organization.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		db:      db,
		repo:    repo,
		orgSvc:  orgSvc,
		mailSvc: mailSvc,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (svc *service) IngestFile(ctx context.Context, organizationID string, data []byte) (IngestResult, error) {
	rows, err := csvimport.Parse(data)
	if err != nil {
		return IngestResult{}, err
	}
	return svc.Ingest(ctx, organizationID, rows)
}

func (svc *service) Ingest(ctx context.Context, organizationID string, rows *csvimport.Reader) (IngestResult, error) {
	org, err := svc.orgSvc.Get(ctx, organizationID)
	if err != nil {
		return IngestResult{}, errors.Wrap(err, "getting organization")
	}

	res := IngestResult{
		ImportID:  uuid.New().String(),
		RowErrors: []csvimport.RowError{},
	}
	err = core.RunInTx(ctx, svc.db, nil, func(tx core.DBTransactor) error {
		for rows.Next() {
			if rowErr := rows.RowErr(); rowErr != nil {
				res.RowErrors = append(res.RowErrors, *rowErr)
				continue
			}
			if err := svc.ingestRow(ctx, tx, org.ID, rows.Row(), &res); err != nil {
				return errors.Wrap(err, fmt.Sprintf("ingesting row %d", rows.Index()))
			}
		}
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "reading rows")
		}
		return nil
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("import %s failed: %v", res.ImportID, err), err, org)
		return IngestResult{ImportID: res.ImportID}, err
	}

	svc.logger.Info(
		fmt.Sprintf("import %s: %d created, %d updated, %d skipped", res.ImportID, res.Created, res.Updated, len(res.RowErrors)),
		map[string]interface{}{
			"import_id":        res.ImportID,
			"created":          res.Created,
			"updated":          res.Updated,
			"students_created": res.StudentsCreated,
			"row_errors":       len(res.RowErrors),
		},
		org,
	)
	return res, nil
}

// ingestRow resolves the row's Student (create-if-absent) then upserts its attendance (insert-or-overwrite).
func (svc *service) ingestRow(ctx context.Context, tx core.DBTransactor, orgID string, row csvimport.Row, res *IngestResult) error {
	now := svc.nowFunc().UTC()
	key := StudentKey{
		OrganizationID: orgID,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		BirthDate:      row.BirthDate,
	}

	st, err := svc.repo.GetStudent(ctx, key, tx)
	if errors.Cause(err) == ErrStudentNotFound {
		var created bool
		st, created, err = svc.repo.CreateStudentIfAbsent(ctx, Student{
			ID:             uuid.New().String(),
			OrganizationID: orgID,
			FirstName:      row.FirstName,
			LastName:       row.LastName,
			BirthDate:      row.BirthDate,
			Gender:         row.Gender,
			Grade:          row.Grade,
			CreatedAt:      now,
		}, tx)
		if created {
			res.StudentsCreated++
		}
	}
	if err != nil {
		return errors.Wrap(err, "resolving student")
	}

	created, err := svc.repo.UpsertRecord(ctx, Record{
		ID:        uuid.New().String(),
		StudentID: st.ID,
		Date:      row.AttendanceDate,
		Present:   row.Present,
		UpdatedAt: now,
	}, tx)
	if err != nil {
		return errors.Wrap(err, "upserting attendance")
	}
	if created {
		res.Created++
	} else {
		res.Updated++
	}
	return nil
}

func (svc *service) NotifyImport(ctx context.Context, organizationID, filename string, res IngestResult) error {
	org, err := svc.orgSvc.Get(ctx, organizationID)
	if err != nil {
		return errors.Wrap(err, "getting organization")
	}
	if org.ContactEmail == "" {
		return nil
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: org.Name, Address: org.ContactEmail}},
		Subject:      fmt.Sprintf("Attendance import: %d created, %d updated", res.Created, res.Updated),
		TemplateName: "import_summary",
		TemplateData: map[string]interface{}{
			"OrganizationName": org.Name,
			"Filename":         filename,
			"ImportID":         res.ImportID,
			"Created":          res.Created,
			"Updated":          res.Updated,
			"StudentsCreated":  res.StudentsCreated,
			"RowErrors":        res.RowErrors,
		},
	})
	return nil
}
