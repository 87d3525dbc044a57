package main

import (
	"log"
	"os"

	"github.com/homer1989/lehrerdb-v4/core"
	"github.com/homer1989/lehrerdb-v4/core/grading"
	"github.com/homer1989/lehrerdb-v4/core/student"
	"github.com/homer1989/lehrerdb-v4/storage/database"
	sqliterepos "github.com/homer1989/lehrerdb-v4/storage/database/sqlite"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	studentSvc := student.NewService(sqliterepos.NewStudentRepository(db))
	gradingSvc := grading.NewService(sqliterepos.NewGradingRepository(db), studentSvc)

	// start CLI
	cli := commandLine{
		db:         db,
		gradingSvc: gradingSvc,
		studentSvc: studentSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
