package grading

import (
	"time"

	"github.com/homer1989/lehrerdb-v4/core"
)

// Assessment kinds (Leistungsabfrage types).
const (
	KindKlausur = "Klausur"
	KindTest    = "Test"
	KindMuendl  = "Mündlich"
	KindAndere  = "Andere"
)

// Assessment (Leistungsabfrage) is a graded event owned by exactly one class
// or course and tied to a GradeKey.
type Assessment struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Kind       string    `json:"kind"`
	ClassID    int       `json:"class_id,omitempty"`
	CourseID   int       `json:"course_id,omitempty"`
	Date       time.Time `json:"date"`
	MaxScore   float64   `json:"max_score"`
	Weight     float64   `json:"weight"`
	GradeKeyID int       `json:"grade_key_id"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (a Assessment) Active() bool { return !a.Archived }

// NewAssessment contains information needed to create a new Assessment.
type NewAssessment struct {
	Title      string    `json:"title" validate:"required"`
	Kind       string    `json:"kind" validate:"omitempty,oneof=Klausur Test Mündlich Andere"`
	ClassID    int       `json:"class_id" validate:"omitempty,min=1"`
	CourseID   int       `json:"course_id" validate:"omitempty,min=1"`
	Date       time.Time `json:"date"`
	MaxScore   float64   `json:"max_score" validate:"gt=0"`
	Weight     float64   `json:"weight" validate:"omitempty,gt=0"`
	GradeKeyID int       `json:"grade_key_id" validate:"required,min=1"`
}

func (na *NewAssessment) Validate() error {
	na.Title = core.CleanString(na.Title)
	if na.Kind == "" {
		na.Kind = KindAndere
	}
	if na.Weight == 0 {
		na.Weight = 1
	}
	return core.Validate.Struct(na)
}

// AssessmentFilter applies AND operation on available fields.
type AssessmentFilter struct {
	ClassID  int    `query:"class_id"`
	CourseID int    `query:"course_id"`
	Kind     string `query:"kind"`
}

func (f *AssessmentFilter) IsEmpty() bool {
	return f.ClassID == 0 && f.CourseID == 0 && f.Kind == ""
}

// ResultRecord is one student's raw score and derived grade for one Assessment.
// There is exactly one record per (Assessment, student) pair.
type ResultRecord struct {
	ID           int       `json:"id"`
	AssessmentID int       `json:"assessment_id"`
	StudentID    int       `json:"student_id"`
	RawScore     float64   `json:"raw_score"`
	Grade        string    `json:"grade"` // always recomputed from RawScore at write time
	Comment      string    `json:"comment,omitempty"`
	BatchID      string    `json:"batch_id,omitempty"` // import batch; empty for manual entry
	CreatedAt    time.Time `json:"created_at"`         // UTC
	UpdatedAt    time.Time `json:"updated_at"`         // UTC
}

// NewResult contains information needed to record a single result manually.
type NewResult struct {
	StudentIdentifier string  `json:"student" validate:"required"`
	RawScore          float64 `json:"score" validate:"min=0"`
	Comment           string  `json:"comment"`
}

func (nr *NewResult) Validate() error {
	nr.StudentIdentifier = core.CleanString(nr.StudentIdentifier)
	nr.Comment = core.CleanString(nr.Comment)
	return core.Validate.Struct(nr)
}

// AssessmentStats summarizes the raw scores recorded for one assessment.
type AssessmentStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Best  float64 `json:"best"`
	Worst float64 `json:"worst"`
}

func ComputeStats(results []ResultRecord) AssessmentStats {
	stats := AssessmentStats{Count: len(results)}
	if stats.Count == 0 {
		return stats
	}
	var sum float64
	stats.Best = results[0].RawScore
	stats.Worst = results[0].RawScore
	for _, rec := range results {
		sum += rec.RawScore
		if rec.RawScore > stats.Best {
			stats.Best = rec.RawScore
		}
		if rec.RawScore < stats.Worst {
			stats.Worst = rec.RawScore
		}
	}
	stats.Mean = sum / float64(stats.Count)
	return stats
}
