package dummydb

import (
	"sync"

	"github.com/homer1989/lehrerdb-v4/core/grading"
	"github.com/homer1989/lehrerdb-v4/core/student"
)

type (
	DB struct {
		students *studentTable
		grading  *gradingTables
	}

	studentTable struct {
		sync.RWMutex
		pk    int
		table map[int]*student.Student
	}

	gradingTables struct {
		sync.RWMutex
		gradeKeyPK   int
		assessmentPK int
		resultPK     int
		gradeKeys    map[int]*grading.GradeKey
		assessments  map[int]*grading.Assessment
		results      map[int]*grading.ResultRecord
	}
)

func Open() (*DB, error) {
	db := &DB{
		students: &studentTable{table: make(map[int]*student.Student)},
		grading: &gradingTables{
			gradeKeys:   make(map[int]*grading.GradeKey),
			assessments: make(map[int]*grading.Assessment),
			results:     make(map[int]*grading.ResultRecord),
		},
	}
	return db, nil
}
