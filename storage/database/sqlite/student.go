package sqliterepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/homer1989/lehrerdb-v4/core/student"
)

type studentRow struct {
	ID         int       `db:"id"`
	Identifier string    `db:"identifier"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	ClassID    int       `db:"class_id"`
	CourseID   int       `db:"course_id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r studentRow) model() student.Student {
	return student.Student{
		ID:         r.ID,
		Identifier: r.Identifier,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		ClassID:    r.ClassID,
		CourseID:   r.CourseID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func studentModels(rows []studentRow) []student.Student {
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.model())
	}
	return students
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckIdentifierUniqueness(ctx context.Context, identifier string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM students WHERE identifier = ?)`, identifier)
	if err != nil {
		return errors.Wrap(err, "checking student identifier uniqueness")
	}
	if exists {
		return student.ErrIdentifierExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO students (identifier, first_name, last_name, class_id, course_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		std.Identifier, std.FirstName, std.LastName, std.ClassID, std.CourseID, std.CreatedAt, std.UpdatedAt)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	std.ID = int(id)
	return std, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id int) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM students WHERE id = ?`, id)
	if err != nil {
		return student.Student{}, trapNoRows(err, student.ErrNotFound, "getting student")
	}
	return row.model(), nil
}

func (repo *studentRepository) GetStudentByIdentifier(ctx context.Context, identifier string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM students WHERE identifier = ?`, identifier)
	if err != nil {
		return student.Student{}, trapNoRows(err, student.ErrNotFound, "getting student by identifier")
	}
	return row.model(), nil
}

func (repo *studentRepository) QueryStudentsByClass(ctx context.Context, classID int) ([]student.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM students WHERE class_id = ? ORDER BY last_name, first_name`, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying students by class")
	}
	return studentModels(rows), nil
}

func (repo *studentRepository) QueryStudentsByCourse(ctx context.Context, courseID int) ([]student.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM students WHERE course_id = ? ORDER BY last_name, first_name`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying students by course")
	}
	return studentModels(rows), nil
}

// trapNoRows maps sql "no rows" to the domain not-found sentinel.
func trapNoRows(err, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}
