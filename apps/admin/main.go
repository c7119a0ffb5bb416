package main

import (
	"log"
	"os"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/dashboard"
	"github.com/trezcool/asistencia/core/organization"
	"github.com/trezcool/asistencia/fs"
	"github.com/trezcool/asistencia/services/email"
	"github.com/trezcool/asistencia/services/logger"
	"github.com/trezcool/asistencia/storage/database"
)

func main() {
	std := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		std.Fatalf("loading config: %+v", err)
	}
	logger := logsvc.NewRollbarLogger(std, conf)

	// migrations are run explicitly by the `migrate` command
	migrate := len(os.Args) < 2 || os.Args[1] != "migrate"

	// set up DB
	store, err := database.Connect(conf, migrate)
	if err != nil {
		std.Fatalf("setting up database: %+v", err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, logger)
	orgSvc := organization.NewService(store.Organizations)

	// start CLI
	cli := commandLine{
		out:           os.Stdout,
		orgSvc:        orgSvc,
		attendanceSvc: attendance.NewService(store.DB, store.Attendance, orgSvc, mailSvc, logger),
		dashboardSvc:  dashboard.NewService(store.DB, store.Attendance, orgSvc),
	}
	if pg, ok := store.DB.(*database.DB); ok {
		cli.sqlDB = pg.DB.DB
	}

	err = cli.run(os.Args)
	mailSvc.Wait()
	_ = store.DB.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
