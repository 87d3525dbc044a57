package main

import (
	"context"

	"github.com/homer1989/lehrerdb-v4/core/student"
)

func (cli *commandLine) addStudent(identifier, first, last string, classID, courseID int) error {
	ns := student.NewStudent{
		Identifier: identifier,
		FirstName:  first,
		LastName:   last,
		ClassID:    classID,
		CourseID:   courseID,
	}
	if err := ns.Validate(cli.studentSvc); err != nil {
		return err
	}
	std, err := cli.studentSvc.Create(context.Background(), ns)
	if err != nil {
		return err
	}
	logger.Printf("student %q registered (id=%d)\n", std.Identifier, std.ID)
	return nil
}
