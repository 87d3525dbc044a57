package student

import (
	"time"

	"github.com/homer1989/lehrerdb-v4/core"
)

type Student struct {
	ID         int       `json:"id"`
	Identifier string    `json:"identifier"` // stable external id used in CSV uploads
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	ClassID    int       `json:"class_id,omitempty"`
	CourseID   int       `json:"course_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (s Student) DisplayName() string {
	return s.LastName + ", " + s.FirstName
}

// InClass reports whether the student belongs to the class.
func (s Student) InClass(classID int) bool {
	return classID != 0 && s.ClassID == classID
}

// InCourse reports whether the student is enrolled in the course.
func (s Student) InCourse(courseID int) bool {
	return courseID != 0 && s.CourseID == courseID
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	Identifier string `json:"identifier" validate:"required"`
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	ClassID    int    `json:"class_id" validate:"omitempty,min=1"`
	CourseID   int    `json:"course_id" validate:"omitempty,min=1"`
}

func (ns *NewStudent) Validate(svc *Service) error {
	ns.Identifier = core.CleanString(ns.Identifier)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkIdentifierUniqueness(ns.Identifier)
}
