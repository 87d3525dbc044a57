package dummydb

import (
	"context"
	"sort"

	"github.com/homer1989/lehrerdb-v4/core/grading"
)

type gradingRepository struct {
	db *gradingTables
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) *gradingRepository {
	return &gradingRepository{db: db.grading}
}

// Grade keys

func (repo *gradingRepository) CheckGradeKeyNameUniqueness(_ context.Context, name string, exclKeys ...grading.GradeKey) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, key := range repo.db.gradeKeys {
		if key.Name == name && !isExcludedKey(*key, exclKeys) {
			return grading.ErrDuplicateName
		}
	}
	return nil
}

func isExcludedKey(key grading.GradeKey, exclKeys []grading.GradeKey) bool {
	for _, excl := range exclKeys {
		if key.ID == excl.ID {
			return true
		}
	}
	return false
}

func (repo *gradingRepository) CreateGradeKey(_ context.Context, key grading.GradeKey) (grading.GradeKey, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.gradeKeyPK++
	key.ID = repo.db.gradeKeyPK
	repo.db.gradeKeys[key.ID] = &key
	return key, nil
}

func (repo *gradingRepository) GetGradeKeyByID(_ context.Context, id int) (grading.GradeKey, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if key, ok := repo.db.gradeKeys[id]; ok {
		return *key, nil
	}
	return grading.GradeKey{}, grading.ErrGradeKeyNotFound
}

func (repo *gradingRepository) QueryAllGradeKeys(_ context.Context) ([]grading.GradeKey, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	keys := make([]grading.GradeKey, 0, len(repo.db.gradeKeys))
	for _, key := range repo.db.gradeKeys {
		keys = append(keys, *key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys, nil
}

func (repo *gradingRepository) GradeKeyHasResults(_ context.Context, keyID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.results {
		if a, ok := repo.db.assessments[rec.AssessmentID]; ok && a.GradeKeyID == keyID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *gradingRepository) UpdateGradeKey(_ context.Context, key grading.GradeKey) (grading.GradeKey, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.gradeKeys[key.ID]; !ok {
		return grading.GradeKey{}, grading.ErrGradeKeyNotFound
	}
	repo.db.gradeKeys[key.ID] = &key
	return key, nil
}

// Assessments

func (repo *gradingRepository) CreateAssessment(_ context.Context, a grading.Assessment) (grading.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.assessmentPK++
	a.ID = repo.db.assessmentPK
	repo.db.assessments[a.ID] = &a
	return a, nil
}

func (repo *gradingRepository) GetAssessmentByID(_ context.Context, id int) (grading.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assessments[id]; ok {
		return *a, nil
	}
	return grading.Assessment{}, grading.ErrAssessmentNotFound
}

func (repo *gradingRepository) FilterAssessments(_ context.Context, filter grading.AssessmentFilter) ([]grading.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assessments := make([]grading.Assessment, 0, len(repo.db.assessments))
	for _, a := range repo.db.assessments {
		if filter.ClassID != 0 && a.ClassID != filter.ClassID {
			continue
		}
		if filter.CourseID != 0 && a.CourseID != filter.CourseID {
			continue
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		assessments = append(assessments, *a)
	}
	sort.Slice(assessments, func(i, j int) bool {
		if !assessments[i].Date.Equal(assessments[j].Date) {
			return assessments[i].Date.After(assessments[j].Date)
		}
		return assessments[i].ID > assessments[j].ID
	})
	return assessments, nil
}

func (repo *gradingRepository) UpdateAssessment(_ context.Context, a grading.Assessment) (grading.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assessments[a.ID]; !ok {
		return grading.Assessment{}, grading.ErrAssessmentNotFound
	}
	repo.db.assessments[a.ID] = &a
	return a, nil
}

func (repo *gradingRepository) DeleteAssessment(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.assessments, id)
	return nil
}

func (repo *gradingRepository) AssessmentHasResults(_ context.Context, id int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.results {
		if rec.AssessmentID == id {
			return true, nil
		}
	}
	return false, nil
}

// Results

func (repo *gradingRepository) UpsertResult(_ context.Context, rec grading.ResultRecord) (grading.ResultRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.results {
		if existing.AssessmentID == rec.AssessmentID && existing.StudentID == rec.StudentID {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			repo.db.results[rec.ID] = &rec
			return rec, nil
		}
	}
	repo.db.resultPK++
	rec.ID = repo.db.resultPK
	repo.db.results[rec.ID] = &rec
	return rec, nil
}

func (repo *gradingRepository) GetResult(_ context.Context, assessmentID, studentID int) (grading.ResultRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.results {
		if rec.AssessmentID == assessmentID && rec.StudentID == studentID {
			return *rec, nil
		}
	}
	return grading.ResultRecord{}, grading.ErrResultNotFound
}

func (repo *gradingRepository) QueryResultsByAssessment(_ context.Context, assessmentID int) ([]grading.ResultRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]grading.ResultRecord, 0, len(repo.db.results))
	for _, rec := range repo.db.results {
		if rec.AssessmentID == assessmentID {
			results = append(results, *rec)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StudentID < results[j].StudentID })
	return results, nil
}

func (repo *gradingRepository) DeleteResult(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.results[id]; !ok {
		return grading.ErrResultNotFound
	}
	delete(repo.db.results, id)
	return nil
}
