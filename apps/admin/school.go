package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/organization"
)

func (cli *commandLine) addSchool(no organization.NewOrganization) error {
	ctx := context.Background()
	if err := no.Validate(ctx, cli.orgSvc); err != nil {
		return validationMessage(err)
	}
	org, err := cli.orgSvc.Register(ctx, no)
	if err != nil {
		return validationMessage(err)
	}
	_, _ = fmt.Fprintf(cli.out, "school %q registered with ID %s\n", org.Name, org.ID)
	return nil
}

func (cli *commandLine) importFile(school, path string) error {
	ctx := context.Background()
	org, err := cli.orgSvc.Lookup(ctx, school)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("looking up school %q", school))
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading file")
	}
	res, err := cli.attendanceSvc.IngestFile(ctx, org.ID, data)
	if err != nil {
		return errors.Wrap(err, "importing "+path)
	}
	if err = cli.attendanceSvc.NotifyImport(ctx, org.ID, filepath.Base(path), res); err != nil {
		return errors.Wrap(err, "sending import summary")
	}
	return cli.printJSON(res)
}

func (cli *commandLine) dashboard(school string) error {
	ctx := context.Background()
	org, err := cli.orgSvc.Lookup(ctx, school)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("looking up school %q", school))
	}

	sum, err := cli.dashboardSvc.Compute(ctx, org.ID)
	if err != nil {
		return err
	}
	return cli.printJSON(sum)
}

// validationMessage joins the field errors of a *core.ValidationError into a single error.
func validationMessage(err error) error {
	verr, ok := errors.Cause(err).(*core.ValidationError)
	if !ok || len(verr.Fields) == 0 {
		return err
	}
	msgs := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		msgs = append(msgs, f.Error)
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}
