package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/homer1989/lehrerdb-v4/core/grading"
	"github.com/homer1989/lehrerdb-v4/core/student"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sqlx.DB
	gradingSvc *grading.Service
	studentSvc *student.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending schema migrations")
	fmt.Println("  seeddata - install the default grade key if no key exists")
	fmt.Println("  addstudent -identifier ID -first NAME -last NAME [-class ID] [-course ID] - register a student")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ExitOnError)
	addIdentifier := addStudentCmd.String("identifier", "", "The student's external identifier (used in CSV uploads).")
	addFirst := addStudentCmd.String("first", "", "The student's first name.")
	addLast := addStudentCmd.String("last", "", "The student's last name.")
	addClass := addStudentCmd.Int("class", 0, "The student's class id.")
	addCourse := addStudentCmd.Int("course", 0, "The student's course id.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "seeddata":
		return cli.seedData()
	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addIdentifier == "" || *addFirst == "" || *addLast == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(*addIdentifier, *addFirst, *addLast, *addClass, *addCourse)
	default:
		cli.printUsage()
		return errHelp
	}
}
