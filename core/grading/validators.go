package grading

import (
	"github.com/go-playground/validator/v10"

	"github.com/homer1989/lehrerdb-v4/core"
)

var (
	oneGroupTag  = "onegroup"
	oneGroupText = "exactly one of class_id or course_id is required"
)

func init() {
	core.Validate.RegisterStructValidation(assessmentStructValidation, NewAssessment{})
	core.RegisterCustomTranslation(oneGroupTag, oneGroupText)
}

// assessmentStructValidation checks that an assessment is owned by exactly one
// of a class or a course.
func assessmentStructValidation(sl validator.StructLevel) {
	na := sl.Current().Interface().(NewAssessment)
	if (na.ClassID == 0) == (na.CourseID == 0) {
		sl.ReportError(na.ClassID, "class_id", "ClassID", oneGroupTag, "")
		sl.ReportError(na.CourseID, "course_id", "CourseID", oneGroupTag, "")
	}
}
