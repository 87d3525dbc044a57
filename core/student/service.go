package student

import (
	"context"
	"errors"
	"time"

	"github.com/homer1989/lehrerdb-v4/core"
)

var (
	// errors
	ErrNotFound         = errors.New("student not found")
	ErrIdentifierExists = errors.New("a student with this identifier already exists")
)

type (
	Repository interface {
		CheckIdentifierUniqueness(ctx context.Context, identifier string) error
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudentByID(ctx context.Context, id int) (Student, error)
		GetStudentByIdentifier(ctx context.Context, identifier string) (Student, error)
		QueryStudentsByClass(ctx context.Context, classID int) ([]Student, error)
		QueryStudentsByCourse(ctx context.Context, courseID int) ([]Student, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkIdentifierUniqueness(identifier string) error {
	if err := svc.repo.CheckIdentifierUniqueness(context.Background(), identifier); err != nil {
		if errors.Is(err, ErrIdentifierExists) {
			return core.NewValidationError(err, core.FieldError{Field: "identifier", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	std := Student{
		Identifier: ns.Identifier,
		FirstName:  ns.FirstName,
		LastName:   ns.LastName,
		ClassID:    ns.ClassID,
		CourseID:   ns.CourseID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

// ResolveIdentifier looks a student up by the external identifier used in CSV files.
func (svc *Service) ResolveIdentifier(ctx context.Context, identifier string) (Student, error) {
	return svc.repo.GetStudentByIdentifier(ctx, core.CleanString(identifier))
}

func (svc *Service) QueryByClass(ctx context.Context, classID int) ([]Student, error) {
	return svc.repo.QueryStudentsByClass(ctx, classID)
}

func (svc *Service) QueryByCourse(ctx context.Context, courseID int) ([]Student, error) {
	return svc.repo.QueryStudentsByCourse(ctx, courseID)
}
