package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/dashboard"
	"github.com/trezcool/asistencia/core/organization"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) } // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out   io.Writer
	sqlDB *sql.DB // nil unless the database is Postgres

	orgSvc        organization.Service
	attendanceSvc attendance.Service
	dashboardSvc  dashboard.Service
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                          - run a goose command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  addschool -code CODE -name NAME [-location LOC] [-email EMAIL]   - register a school")
	_, _ = fmt.Fprintln(cli.out, "  import -school NAME|CODE -file PATH.csv                          - import an attendance file")
	_, _ = fmt.Fprintln(cli.out, "  dashboard -school NAME|CODE                                      - print a school's dashboard")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse parses args with fs; a help request, or any missing required flag, prints the usage.
func parse(fs *flag.FlagSet, args []string, required ...*string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	for _, val := range required {
		if *val == "" {
			fs.Usage()
			return errHelp
		}
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addSchoolCmd := cli.newFlagSet("addschool")
	addSchoolCode := addSchoolCmd.String("code", "", "The school's registry code (e.g. DANE code). Must be unique.")
	addSchoolName := addSchoolCmd.String("name", "", "The school's name.")
	addSchoolLocation := addSchoolCmd.String("location", "", "Where the school is.")
	addSchoolEmail := addSchoolCmd.String("email", "", "The contact email import summaries are sent to.")

	importCmd := cli.newFlagSet("import")
	importSchool := importCmd.String("school", "", "The school's name or code.")
	importFile := importCmd.String("file", "", "The CSV file to import.")

	dashboardCmd := cli.newFlagSet("dashboard")
	dashboardSchool := dashboardCmd.String("school", "", "The school's name or code.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addschool":
		if err := parse(addSchoolCmd, args[2:], addSchoolCode, addSchoolName); err != nil {
			return err
		}
		return cli.addSchool(organization.NewOrganization{
			Code:         *addSchoolCode,
			Name:         *addSchoolName,
			Location:     *addSchoolLocation,
			ContactEmail: *addSchoolEmail,
		})
	case "import":
		if err := parse(importCmd, args[2:], importSchool, importFile); err != nil {
			return err
		}
		return cli.importFile(*importSchool, *importFile)
	case "dashboard":
		if err := parse(dashboardCmd, args[2:], dashboardSchool); err != nil {
			return err
		}
		return cli.dashboard(*dashboardSchool)
	default:
		cli.printUsage()
		return errHelp
	}
}

// printJSON prints v as JSON, indented for humans.
func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	if isTerminalFunc() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
