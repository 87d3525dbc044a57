package grading

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/homer1989/lehrerdb-v4/core"
	"github.com/homer1989/lehrerdb-v4/core/student"
)

var (
	// definitional errors
	ErrInvalidRange  = errors.New("bands must partition the score range with no gaps or overlaps")
	ErrDuplicateName = errors.New("a grade key with this name already exists")
	ErrGradeKeyInUse = errors.New("grade key is referenced by an assessment with committed results")

	// lookup errors
	ErrGradeKeyNotFound   = errors.New("grade key not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrResultNotFound     = errors.New("result not found")

	// recording errors
	ErrAssessmentArchived   = errors.New("assessment is archived")
	ErrAssessmentHasResults = errors.New("assessment has committed results")
	ErrUnknownStudent       = errors.New("unknown student")
	ErrNotEnrolled          = errors.New("student is not enrolled in the assessment's group")
	ErrScoreOutOfRange      = errors.New("score is outside the assessment's range")

	// ErrOutOfRange signals an internal consistency failure: a normalized score
	// missed every band of a validated key. It must surface, never default.
	ErrOutOfRange = errors.New("normalized score falls outside all grade key bands")

	// import errors
	ErrUnrecognizedFormat = errors.New("file format not recognized as CSV")
	ErrImportInProgress   = errors.New("an import for this assessment is already running")
)

type (
	Repository interface {
		// grade keys
		// CheckGradeKeyNameUniqueness ignores keys in exclKeys (the key being updated).
		CheckGradeKeyNameUniqueness(ctx context.Context, name string, exclKeys ...GradeKey) error
		CreateGradeKey(ctx context.Context, key GradeKey) (GradeKey, error)
		GetGradeKeyByID(ctx context.Context, id int) (GradeKey, error)
		QueryAllGradeKeys(ctx context.Context) ([]GradeKey, error)
		// GradeKeyHasResults reports whether any assessment referencing the key
		// has at least one committed result.
		GradeKeyHasResults(ctx context.Context, keyID int) (bool, error)
		UpdateGradeKey(ctx context.Context, key GradeKey) (GradeKey, error)

		// assessments
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		GetAssessmentByID(ctx context.Context, id int) (Assessment, error)
		// FilterAssessments applies AND operation on available AssessmentFilter
		// fields, ordered by date descending.
		FilterAssessments(ctx context.Context, filter AssessmentFilter) ([]Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		DeleteAssessment(ctx context.Context, id int) error
		AssessmentHasResults(ctx context.Context, id int) (bool, error)

		// results: one row per (assessment, student); UpsertResult preserves
		// CreatedAt on update.
		UpsertResult(ctx context.Context, rec ResultRecord) (ResultRecord, error)
		GetResult(ctx context.Context, assessmentID, studentID int) (ResultRecord, error)
		QueryResultsByAssessment(ctx context.Context, assessmentID int) ([]ResultRecord, error)
		DeleteResult(ctx context.Context, id int) error
	}

	Service struct {
		repo     Repository
		students *student.Service

		mu          sync.Mutex
		importLocks map[int]*sync.Mutex // advisory locks keyed by assessment ID
	}
)

func NewService(repo Repository, students *student.Service) *Service {
	return &Service{
		repo:        repo,
		students:    students,
		importLocks: make(map[int]*sync.Mutex),
	}
}

// Grade keys

func (svc *Service) checkNameUniqueness(name string, exclKeys ...GradeKey) error {
	if err := svc.repo.CheckGradeKeyNameUniqueness(context.Background(), name, exclKeys...); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) CreateGradeKey(ctx context.Context, nk NewGradeKey) (GradeKey, error) {
	now := time.Now().UTC()
	key := GradeKey{
		Name:      nk.Name,
		Max:       nk.Max,
		Bands:     nk.Bands,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateGradeKey(ctx, key)
}

func (svc *Service) GetGradeKey(ctx context.Context, id int) (GradeKey, error) {
	return svc.repo.GetGradeKeyByID(ctx, id)
}

func (svc *Service) QueryGradeKeys(ctx context.Context) ([]GradeKey, error) {
	return svc.repo.QueryAllGradeKeys(ctx)
}

// UpdateGradeKey replaces the bands of an existing key. A key referenced by an
// assessment with committed results is immutable: changing it would silently
// change historical grades.
func (svc *Service) UpdateGradeKey(ctx context.Context, id int, nk NewGradeKey) (GradeKey, error) {
	key, err := svc.repo.GetGradeKeyByID(ctx, id)
	if err != nil {
		return GradeKey{}, err
	}
	inUse, err := svc.repo.GradeKeyHasResults(ctx, key.ID)
	if err != nil {
		return GradeKey{}, err
	}
	if inUse {
		return GradeKey{}, ErrGradeKeyInUse
	}
	key.Name = nk.Name
	key.Max = nk.Max
	key.Bands = nk.Bands
	key.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateGradeKey(ctx, key)
}

// Assessments

func (svc *Service) CreateAssessment(ctx context.Context, na NewAssessment) (Assessment, error) {
	if _, err := svc.repo.GetGradeKeyByID(ctx, na.GradeKeyID); err != nil {
		if errors.Is(err, ErrGradeKeyNotFound) {
			return Assessment{}, core.NewValidationError(err, core.FieldError{Field: "grade_key_id", Error: err.Error()})
		}
		return Assessment{}, err
	}
	now := time.Now().UTC()
	a := Assessment{
		Title:      na.Title,
		Kind:       na.Kind,
		ClassID:    na.ClassID,
		CourseID:   na.CourseID,
		Date:       na.Date,
		MaxScore:   na.MaxScore,
		Weight:     na.Weight,
		GradeKeyID: na.GradeKeyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateAssessment(ctx, a)
}

func (svc *Service) GetAssessment(ctx context.Context, id int) (Assessment, error) {
	return svc.repo.GetAssessmentByID(ctx, id)
}

func (svc *Service) FilterAssessments(ctx context.Context, filter AssessmentFilter) ([]Assessment, error) {
	return svc.repo.FilterAssessments(ctx, filter)
}

// ArchiveAssessment marks the assessment inactive. Existing results remain
// queryable; no new results may reference it.
func (svc *Service) ArchiveAssessment(ctx context.Context, id int) (Assessment, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	a.Archived = true
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssessment(ctx, a)
}

// DeleteAssessment hard-deletes an assessment with zero results. An assessment
// with committed results must be archived instead, to preserve history.
func (svc *Service) DeleteAssessment(ctx context.Context, id int) error {
	if _, err := svc.repo.GetAssessmentByID(ctx, id); err != nil {
		return err
	}
	hasResults, err := svc.repo.AssessmentHasResults(ctx, id)
	if err != nil {
		return err
	}
	if hasResults {
		return ErrAssessmentHasResults
	}
	return svc.repo.DeleteAssessment(ctx, id)
}

// roster returns the students of the assessment's owning group.
func (svc *Service) roster(ctx context.Context, a Assessment) ([]student.Student, error) {
	if a.ClassID != 0 {
		return svc.students.QueryByClass(ctx, a.ClassID)
	}
	return svc.students.QueryByCourse(ctx, a.CourseID)
}

// CSVTemplate renders the upload template for an assessment: the import header
// plus one prefilled row per roster student. The "name" column is informational
// and ignored on import.
func (svc *Service) CSVTemplate(ctx context.Context, assessmentID int) ([]byte, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	roster, err := svc.roster(ctx, a)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("student;name;score;comment\n")
	for _, std := range roster {
		buf.WriteString(std.Identifier)
		buf.WriteByte(';')
		buf.WriteString(std.DisplayName())
		buf.WriteString(";;\n")
	}
	return buf.Bytes(), nil
}

// Results

// Record validates and upserts one student's result for an assessment,
// recomputing the derived grade from the assessment's grade key at write time.
func (svc *Service) Record(ctx context.Context, assessmentID int, nr NewResult) (ResultRecord, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return ResultRecord{}, err
	}
	key, err := svc.repo.GetGradeKeyByID(ctx, a.GradeKeyID)
	if err != nil {
		return ResultRecord{}, err
	}
	std, err := svc.students.ResolveIdentifier(ctx, nr.StudentIdentifier)
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			return ResultRecord{}, ErrUnknownStudent
		}
		return ResultRecord{}, err
	}
	return svc.record(ctx, a, key, std, nr.RawScore, nr.Comment, "")
}

// record is the shared write path for manual entry and the import pipeline.
// The caller has already resolved the assessment, key and student.
func (svc *Service) record(ctx context.Context, a Assessment, key GradeKey, std student.Student, rawScore float64, comment, batchID string) (ResultRecord, error) {
	if a.Archived {
		return ResultRecord{}, ErrAssessmentArchived
	}
	if !std.InClass(a.ClassID) && !std.InCourse(a.CourseID) {
		return ResultRecord{}, ErrNotEnrolled
	}
	if rawScore < 0 || rawScore > a.MaxScore {
		return ResultRecord{}, ErrScoreOutOfRange
	}
	grade, err := key.Resolve(rawScore, a.MaxScore)
	if err != nil {
		return ResultRecord{}, err
	}

	now := time.Now().UTC()
	rec := ResultRecord{
		AssessmentID: a.ID,
		StudentID:    std.ID,
		RawScore:     rawScore,
		Grade:        grade,
		Comment:      comment,
		BatchID:      batchID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.UpsertResult(ctx, rec)
}

func (svc *Service) QueryResults(ctx context.Context, assessmentID int) ([]ResultRecord, error) {
	if _, err := svc.repo.GetAssessmentByID(ctx, assessmentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryResultsByAssessment(ctx, assessmentID)
}

// DeleteResult removes a single record (a teacher correcting an entry).
func (svc *Service) DeleteResult(ctx context.Context, id int) error {
	return svc.repo.DeleteResult(ctx, id)
}
