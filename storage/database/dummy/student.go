package dummydb

import (
	"context"
	"sort"

	"github.com/homer1989/lehrerdb-v4/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.students}
}

func (repo *studentRepository) CheckIdentifierUniqueness(_ context.Context, identifier string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, std := range repo.db.table {
		if std.Identifier == identifier {
			return student.ErrIdentifierExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pk++
	std.ID = repo.db.pk
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id int) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.table[id]; ok {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByIdentifier(_ context.Context, identifier string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, std := range repo.db.table {
		if std.Identifier == identifier {
			return *std, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudentsByClass(_ context.Context, classID int) ([]student.Student, error) {
	return repo.query(func(std student.Student) bool { return std.InClass(classID) }), nil
}

func (repo *studentRepository) QueryStudentsByCourse(_ context.Context, courseID int) ([]student.Student, error) {
	return repo.query(func(std student.Student) bool { return std.InCourse(courseID) }), nil
}

func (repo *studentRepository) query(match func(student.Student) bool) []student.Student {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]student.Student, 0, len(repo.db.table))
	for _, std := range repo.db.table {
		if match(*std) {
			students = append(students, *std)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].FirstName < students[j].FirstName
	})
	return students
}
