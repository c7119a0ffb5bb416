package echoapi

import (
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/dashboard"
	"github.com/trezcool/asistencia/core/organization"
)

const uploadField = "file"

type organizationApi struct {
	logger        core.Logger
	svc           organization.Service
	attendanceSvc attendance.Service
	dashboardSvc  dashboard.Service
}

func registerOrganizationAPI(g *echo.Group, deps ServerDeps) {
	api := organizationApi{
		logger:        deps.Logger,
		svc:           deps.OrgSvc,
		attendanceSvc: deps.AttendanceSvc,
		dashboardSvc:  deps.DashboardSvc,
	}

	og := g.Group("/organizations")
	og.POST("", api.create)

	// detail endpoints
	dg := og.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/uploads", api.upload)
	dg.GET("/dashboard", api.dashboard)
}

// Handlers

func (api *organizationApi) create(ctx echo.Context) error {
	var data organization.NewOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.svc); err != nil {
		return err
	}

	org, err := api.svc.Register(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "registering organization")
	}
	return ctx.JSON(http.StatusCreated, org)
}

func (api *organizationApi) retrieve(ctx echo.Context) error {
	org, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting organization")
	}
	return ctx.JSON(http.StatusOK, org)
}

// upload ingests a CSV file sent as the multipart field "file", then mails the summary to the organization.
func (api *organizationApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: "a CSV file is required"})
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		return core.NewValidationError(nil, core.FieldError{Field: uploadField, Error: "only .csv files are accepted"})
	}
	data, err := readFormFile(fh)
	if err != nil {
		return errors.Wrap(err, "reading uploaded file")
	}

	reqCtx := ctx.Request().Context()
	orgID := ctx.Param("id")
	res, err := api.attendanceSvc.IngestFile(reqCtx, orgID, data)
	if err != nil {
		return errors.Wrap(err, "ingesting "+fh.Filename)
	}

	if err = api.attendanceSvc.NotifyImport(reqCtx, orgID, fh.Filename, res); err != nil {
		api.logger.Warn("sending import summary: "+err.Error(), err)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *organizationApi) dashboard(ctx echo.Context) error {
	sum, err := api.dashboardSvc.Compute(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ioutil.ReadAll(f)
}
