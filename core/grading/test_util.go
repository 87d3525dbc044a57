package grading

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/homer1989/lehrerdb-v4/core/student"
)

var testCtx = context.Background()

// fakeRepo is an in-memory Repository for tests.
type fakeRepo struct {
	gradeKeyPK   int
	assessmentPK int
	resultPK     int
	gradeKeys    map[int]GradeKey
	assessments  map[int]Assessment
	results      map[int]ResultRecord
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		gradeKeys:   make(map[int]GradeKey),
		assessments: make(map[int]Assessment),
		results:     make(map[int]ResultRecord),
	}
}

func (repo *fakeRepo) CheckGradeKeyNameUniqueness(_ context.Context, name string, exclKeys ...GradeKey) error {
	for _, key := range repo.gradeKeys {
		if key.Name != name {
			continue
		}
		excluded := false
		for _, excl := range exclKeys {
			if key.ID == excl.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return ErrDuplicateName
		}
	}
	return nil
}

func (repo *fakeRepo) CreateGradeKey(_ context.Context, key GradeKey) (GradeKey, error) {
	repo.gradeKeyPK++
	key.ID = repo.gradeKeyPK
	repo.gradeKeys[key.ID] = key
	return key, nil
}

func (repo *fakeRepo) GetGradeKeyByID(_ context.Context, id int) (GradeKey, error) {
	if key, ok := repo.gradeKeys[id]; ok {
		return key, nil
	}
	return GradeKey{}, ErrGradeKeyNotFound
}

func (repo *fakeRepo) QueryAllGradeKeys(_ context.Context) ([]GradeKey, error) {
	keys := make([]GradeKey, 0, len(repo.gradeKeys))
	for _, key := range repo.gradeKeys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys, nil
}

func (repo *fakeRepo) GradeKeyHasResults(_ context.Context, keyID int) (bool, error) {
	for _, rec := range repo.results {
		if a, ok := repo.assessments[rec.AssessmentID]; ok && a.GradeKeyID == keyID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *fakeRepo) UpdateGradeKey(_ context.Context, key GradeKey) (GradeKey, error) {
	if _, ok := repo.gradeKeys[key.ID]; !ok {
		return GradeKey{}, ErrGradeKeyNotFound
	}
	repo.gradeKeys[key.ID] = key
	return key, nil
}

func (repo *fakeRepo) CreateAssessment(_ context.Context, a Assessment) (Assessment, error) {
	repo.assessmentPK++
	a.ID = repo.assessmentPK
	repo.assessments[a.ID] = a
	return a, nil
}

func (repo *fakeRepo) GetAssessmentByID(_ context.Context, id int) (Assessment, error) {
	if a, ok := repo.assessments[id]; ok {
		return a, nil
	}
	return Assessment{}, ErrAssessmentNotFound
}

func (repo *fakeRepo) FilterAssessments(_ context.Context, filter AssessmentFilter) ([]Assessment, error) {
	assessments := make([]Assessment, 0, len(repo.assessments))
	for _, a := range repo.assessments {
		if filter.ClassID != 0 && a.ClassID != filter.ClassID {
			continue
		}
		if filter.CourseID != 0 && a.CourseID != filter.CourseID {
			continue
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		assessments = append(assessments, a)
	}
	sort.Slice(assessments, func(i, j int) bool { return assessments[i].ID > assessments[j].ID })
	return assessments, nil
}

func (repo *fakeRepo) UpdateAssessment(_ context.Context, a Assessment) (Assessment, error) {
	if _, ok := repo.assessments[a.ID]; !ok {
		return Assessment{}, ErrAssessmentNotFound
	}
	repo.assessments[a.ID] = a
	return a, nil
}

func (repo *fakeRepo) DeleteAssessment(_ context.Context, id int) error {
	delete(repo.assessments, id)
	return nil
}

func (repo *fakeRepo) AssessmentHasResults(_ context.Context, id int) (bool, error) {
	for _, rec := range repo.results {
		if rec.AssessmentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (repo *fakeRepo) UpsertResult(_ context.Context, rec ResultRecord) (ResultRecord, error) {
	for _, existing := range repo.results {
		if existing.AssessmentID == rec.AssessmentID && existing.StudentID == rec.StudentID {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			repo.results[rec.ID] = rec
			return rec, nil
		}
	}
	repo.resultPK++
	rec.ID = repo.resultPK
	repo.results[rec.ID] = rec
	return rec, nil
}

func (repo *fakeRepo) GetResult(_ context.Context, assessmentID, studentID int) (ResultRecord, error) {
	for _, rec := range repo.results {
		if rec.AssessmentID == assessmentID && rec.StudentID == studentID {
			return rec, nil
		}
	}
	return ResultRecord{}, ErrResultNotFound
}

func (repo *fakeRepo) QueryResultsByAssessment(_ context.Context, assessmentID int) ([]ResultRecord, error) {
	results := make([]ResultRecord, 0, len(repo.results))
	for _, rec := range repo.results {
		if rec.AssessmentID == assessmentID {
			results = append(results, rec)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StudentID < results[j].StudentID })
	return results, nil
}

func (repo *fakeRepo) DeleteResult(_ context.Context, id int) error {
	if _, ok := repo.results[id]; !ok {
		return ErrResultNotFound
	}
	delete(repo.results, id)
	return nil
}

// fakeStudentRepo is an in-memory student.Repository for tests.
type fakeStudentRepo struct {
	pk    int
	table map[int]student.Student
}

var _ student.Repository = (*fakeStudentRepo)(nil)

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{table: make(map[int]student.Student)}
}

func (repo *fakeStudentRepo) CheckIdentifierUniqueness(_ context.Context, identifier string) error {
	for _, std := range repo.table {
		if std.Identifier == identifier {
			return student.ErrIdentifierExists
		}
	}
	return nil
}

func (repo *fakeStudentRepo) CreateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.pk++
	std.ID = repo.pk
	repo.table[std.ID] = std
	return std, nil
}

func (repo *fakeStudentRepo) GetStudentByID(_ context.Context, id int) (student.Student, error) {
	if std, ok := repo.table[id]; ok {
		return std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *fakeStudentRepo) GetStudentByIdentifier(_ context.Context, identifier string) (student.Student, error) {
	for _, std := range repo.table {
		if std.Identifier == identifier {
			return std, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *fakeStudentRepo) QueryStudentsByClass(_ context.Context, classID int) ([]student.Student, error) {
	return repo.query(func(std student.Student) bool { return std.InClass(classID) }), nil
}

func (repo *fakeStudentRepo) QueryStudentsByCourse(_ context.Context, courseID int) ([]student.Student, error) {
	return repo.query(func(std student.Student) bool { return std.InCourse(courseID) }), nil
}

func (repo *fakeStudentRepo) query(match func(student.Student) bool) []student.Student {
	students := make([]student.Student, 0, len(repo.table))
	for _, std := range repo.table {
		if match(std) {
			students = append(students, std)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newFakeRepo(), student.NewService(newFakeStudentRepo()))
}

// newTestEnv builds a service with a grade key, a class assessment and an
// enrolled roster, the shared fixture for record and import tests.
type testEnv struct {
	svc        *Service
	key        GradeKey
	assessment Assessment
	roster     []student.Student
}

func newTestEnv(t *testing.T, identifiers ...string) *testEnv {
	t.Helper()

	studentRepo := newFakeStudentRepo()
	students := student.NewService(studentRepo)
	svc := NewService(newFakeRepo(), students)

	key, err := svc.CreateGradeKey(testCtx, NewGradeKey{
		Name: "standard",
		Max:  1,
		Bands: []Band{
			{Label: "nicht bestanden", Lower: 0, Upper: 0.6},
			{Label: "befriedigend", Lower: 0.6, Upper: 0.75},
			{Label: "gut", Lower: 0.75, Upper: 1.0},
		},
	})
	if err != nil {
		t.Fatalf("newTestEnv: creating grade key failed: %v", err)
	}

	a, err := svc.CreateAssessment(testCtx, NewAssessment{
		Title:      "Klausur 1",
		Kind:       KindKlausur,
		ClassID:    1,
		Date:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		MaxScore:   20,
		Weight:     1,
		GradeKeyID: key.ID,
	})
	if err != nil {
		t.Fatalf("newTestEnv: creating assessment failed: %v", err)
	}

	env := &testEnv{svc: svc, key: key, assessment: a}
	for i, identifier := range identifiers {
		std, err := students.Create(testCtx, student.NewStudent{
			Identifier: identifier,
			FirstName:  "F" + identifier,
			LastName:   "L" + identifier,
			ClassID:    1,
		})
		if err != nil {
			t.Fatalf("newTestEnv: creating student %d failed: %v", i, err)
		}
		env.roster = append(env.roster, std)
	}
	return env
}
