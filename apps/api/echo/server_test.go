package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/asistencia/apps/api/echo"
	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/dashboard"
	"github.com/trezcool/asistencia/core/organization"
	"github.com/trezcool/asistencia/fs"
	"github.com/trezcool/asistencia/services/email"
	"github.com/trezcool/asistencia/storage/database/inmem"
	"github.com/trezcool/asistencia/tests"
)

var now = time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

type env struct {
	app     echoapi.Server
	orgRepo organization.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T, wrap ...func(attendance.Repository) attendance.Repository) env {
	db := inmemdb.Open()
	logger := testutil.NewLogger(t)
	conf := &core.Config{
		AppName:  "Asistencia",
		TestMode: true,
		Server:   core.ServerConfig{MaxUploadSize: "1M"},
	}
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, logger)

	orgRepo := inmemdb.NewOrganizationRepository(db)
	repo := inmemdb.NewAttendanceRepository(db)
	for _, w := range wrap {
		repo = w(repo)
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	orgSvc := organization.NewService(orgRepo)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		OrgSvc:         orgSvc,
		AttendanceSvc:  attendance.NewService(db, repo, orgSvc, mailSvc, logger),
		DashboardSvc:   dashboard.NewService(db, repo, orgSvc, dashboard.WithClock(func() time.Time { return now })),
	})
	return env{app: app, orgRepo: orgRepo, mailSvc: mailSvc}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData string
}

func (e env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, path string, data []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func newUploadRequest(t *testing.T, path, filename string, data []byte) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestServer_home(t *testing.T) {
	e := setup(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Asistencia API!", rec.Body.String())
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}

func TestOrganizationApi_createAndRetrieve(t *testing.T) {
	e := setup(t)
	existing := testutil.CreateOrganization(t, e.orgRepo, "ORG1", "Colegio Uno")

	tests := []httpTest{
		{
			name:     "valid",
			method:   http.MethodPost,
			path:     "/v1/organizations",
			body:     []byte(`{"code": " 111001000001 ", "name": "Colegio San José", "contact_email": "Rector@SanJose.edu"}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate code",
			method:   http.MethodPost,
			path:     "/v1/organizations",
			body:     []byte(`{"code": "ORG1", "name": "Otro"}`),
			wantCode: http.StatusBadRequest,
			wantData: `{"code": "an organization with this code already exists"}`,
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/organizations",
			body:     []byte(`{"contact_email": "nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: `{"code": "code is required", "name": "name is required", "contact_email": "contact_email must be a valid email address"}`,
		},
		{
			name:     "retrieve",
			method:   http.MethodGet,
			path:     "/v1/organizations/" + existing.ID,
			wantCode: http.StatusOK,
		},
		{
			name:     "retrieve unknown",
			method:   http.MethodGet,
			path:     "/v1/organizations/nope",
			wantCode: http.StatusNotFound,
			wantData: `{"error": "organization not found"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(newRequest(tt.method, tt.path, tt.body))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != "" {
				assert.JSONEq(t, tt.wantData, rec.Body.String())
			}
		})
	}

	// the registered organization is cleaned and retrievable
	got, err := e.orgRepo.GetOrganization(context.Background(), organization.GetFilter{Code: "111001000001"})
	require.NoError(t, err)
	assert.Equal(t, "rector@sanjose.edu", got.ContactEmail)

	rec := e.do(newRequest(http.MethodGet, "/v1/organizations/"+got.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var org organization.Organization
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &org))
	assert.Equal(t, got.ID, org.ID)
	assert.Equal(t, "Colegio San José", org.Name)
}

func TestOrganizationApi_upload(t *testing.T) {
	e := setup(t)
	org := testutil.CreateOrganization(t, e.orgRepo, "ORG1", "Colegio Uno")
	path := "/v1/organizations/" + org.ID + "/uploads"

	valid := []byte(testutil.CSVHeader +
		"Ana,Ruiz,2014-03-01,F,5,2024-05-01,Presente\n" +
		"Luis,Gómez,not-a-date,M,6,2024-05-01,Presente\n" +
		"Ana,Ruiz,2014-03-01,F,5,2024-05-02,Ausente\n")

	t.Run("valid file", func(t *testing.T) {
		rec := e.do(newUploadRequest(t, path, "mayo.CSV", valid))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res attendance.IngestResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.ImportID)
		assert.Equal(t, 2, res.Created)
		assert.Equal(t, 0, res.Updated)
		assert.Equal(t, 1, res.StudentsCreated)
		require.Len(t, res.RowErrors, 1)
		assert.Equal(t, 2, res.RowErrors[0].Index)
		assert.Equal(t, "birth_date", res.RowErrors[0].Field)

		sent := e.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, org.ContactEmail, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "mayo.CSV")
	})

	t.Run("same file again", func(t *testing.T) {
		rec := e.do(newUploadRequest(t, path, "mayo.csv", valid))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res attendance.IngestResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 0, res.Created)
		assert.Equal(t, 2, res.Updated)
		assert.Equal(t, 0, res.StudentsCreated)
	})

	tests := []httpTest{
		{
			name:     "no file",
			path:     path,
			wantCode: http.StatusBadRequest,
			wantData: `{"file": "a CSV file is required"}`,
		},
		{
			name:     "not a csv",
			path:     path,
			body:     valid,
			wantCode: http.StatusBadRequest,
			wantData: `{"file": "only .csv files are accepted"}`,
		},
		{
			name:     "missing columns",
			path:     path,
			body:     []byte("first_name,last_name,birthdate,gender,grade\n"),
			wantCode: http.StatusBadRequest,
			wantData: `{
				"error": "missing required column(s): birth_date, attendance_date, attendance_status (did you mean \"birth_date\" instead of \"birthdate\"?)",
				"missing": ["birth_date", "attendance_date", "attendance_status"],
				"suggestions": {"birth_date": "birthdate"}
			}`,
		},
		{
			name:     "not utf-8",
			path:     path,
			body:     append([]byte(testutil.CSVHeader), 0xff),
			wantCode: http.StatusBadRequest,
			wantData: `{"error": "file is not valid UTF-8 (invalid byte sequence at offset 79)", "offset": 79}`,
		},
		{
			name:     "unknown organization",
			path:     "/v1/organizations/00000000-0000-0000-0000-000000000000/uploads",
			body:     valid,
			wantCode: http.StatusNotFound,
			wantData: `{"error": "organization not found"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var filename string
			switch {
			case tt.name == "not a csv":
				filename = "mayo.xlsx"
			case tt.body != nil:
				filename = "mayo.csv"
			}
			rec := e.do(newUploadRequest(t, tt.path, filename, tt.body))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.JSONEq(t, tt.wantData, rec.Body.String())
		})
	}
}

func TestOrganizationApi_dashboard(t *testing.T) {
	e := setup(t)
	org := testutil.CreateOrganization(t, e.orgRepo, "ORG1", "Colegio Uno")

	rec := e.do(newUploadRequest(t, "/v1/organizations/"+org.ID+"/uploads", "mayo.csv", []byte(testutil.CSVHeader+
		"Ana,Ruiz,2014-03-01,F,5,2024-05-01,Presente\n"+
		"Ana,Ruiz,2014-03-01,F,5,2024-05-02,Ausente\n")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(newRequest(http.MethodGet, "/v1/organizations/"+org.ID+"/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"organization_id": "`+org.ID+`",
		"total_students": 1,
		"gender": {"labels": ["F"], "values": [1]},
		"grade": {"labels": ["5"], "values": [1]},
		"age": {"labels": ["0-8", "9-11", "12-14", "15-18"], "values": [0, 1, 0, 0]},
		"absence_trend": {
			"labels": ["1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"],
			"values": [0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0]
		},
		"year": 2024,
		"generated_at": "2024-06-15T14:30:00Z"
	}`, rec.Body.String())

	rec = e.do(newRequest(http.MethodGet, "/v1/organizations/nope/dashboard", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type brokenRepository struct {
	attendance.Repository
}

func (brokenRepository) QueryStudents(context.Context, string, ...core.DBExecutor) ([]attendance.Student, error) {
	return nil, core.NewStorageError("querying students", errors.New("connection refused"))
}

func TestOrganizationApi_dashboardStorageError(t *testing.T) {
	e := setup(t, func(repo attendance.Repository) attendance.Repository { return brokenRepository{repo} })
	org := testutil.CreateOrganization(t, e.orgRepo, "ORG1", "Colegio Uno")

	rec := e.do(newRequest(http.MethodGet, "/v1/organizations/"+org.ID+"/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal Server Error"}`, rec.Body.String())
}
