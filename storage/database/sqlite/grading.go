package sqliterepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/homer1989/lehrerdb-v4/core"
	"github.com/homer1989/lehrerdb-v4/core/grading"
)

type gradeKeyRow struct {
	ID         int       `db:"id"`
	Name       string    `db:"name"`
	Max        float64   `db:"max"`
	Definition string    `db:"definition"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r gradeKeyRow) model() (grading.GradeKey, error) {
	bands, err := grading.ParseDefinition(r.Definition)
	if err != nil {
		// a stored definition that no longer parses cannot be repaired at runtime
		return grading.GradeKey{}, errors.Wrapf(
			core.NewShutdownError(err.Error()), "corrupt grade key definition (id=%d)", r.ID)
	}
	return grading.GradeKey{
		ID:        r.ID,
		Name:      r.Name,
		Max:       r.Max,
		Bands:     bands,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

type assessmentRow struct {
	ID         int       `db:"id"`
	Title      string    `db:"title"`
	Kind       string    `db:"kind"`
	ClassID    int       `db:"class_id"`
	CourseID   int       `db:"course_id"`
	Date       time.Time `db:"date"`
	MaxScore   float64   `db:"max_score"`
	Weight     float64   `db:"weight"`
	GradeKeyID int       `db:"grade_key_id"`
	Archived   bool      `db:"archived"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r assessmentRow) model() grading.Assessment {
	return grading.Assessment{
		ID:         r.ID,
		Title:      r.Title,
		Kind:       r.Kind,
		ClassID:    r.ClassID,
		CourseID:   r.CourseID,
		Date:       r.Date,
		MaxScore:   r.MaxScore,
		Weight:     r.Weight,
		GradeKeyID: r.GradeKeyID,
		Archived:   r.Archived,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type resultRow struct {
	ID           int       `db:"id"`
	AssessmentID int       `db:"assessment_id"`
	StudentID    int       `db:"student_id"`
	RawScore     float64   `db:"raw_score"`
	Grade        string    `db:"grade"`
	Comment      string    `db:"comment"`
	BatchID      string    `db:"batch_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r resultRow) model() grading.ResultRecord {
	return grading.ResultRecord{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		StudentID:    r.StudentID,
		RawScore:     r.RawScore,
		Grade:        r.Grade,
		Comment:      r.Comment,
		BatchID:      r.BatchID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type gradingRepository struct {
	db *sqlx.DB
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *sqlx.DB) *gradingRepository {
	return &gradingRepository{db: db}
}

// Grade keys

func (repo *gradingRepository) CheckGradeKeyNameUniqueness(ctx context.Context, name string, exclKeys ...grading.GradeKey) error {
	query := `SELECT EXISTS (SELECT 1 FROM grade_keys WHERE name = ?`
	args := []interface{}{name}
	for _, key := range exclKeys {
		query += ` AND id != ?`
		args = append(args, key.ID)
	}
	query += `)`

	var exists bool
	err := repo.db.GetContext(ctx, &exists, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking grade key name uniqueness")
	}
	if exists {
		return grading.ErrDuplicateName
	}
	return nil
}

func (repo *gradingRepository) CreateGradeKey(ctx context.Context, key grading.GradeKey) (grading.GradeKey, error) {
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO grade_keys (name, max, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key.Name, key.Max, key.Definition(), key.CreatedAt, key.UpdatedAt)
	if err != nil {
		return grading.GradeKey{}, errors.Wrap(err, "inserting grade key")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return grading.GradeKey{}, errors.Wrap(err, "inserting grade key")
	}
	key.ID = int(id)
	return key, nil
}

func (repo *gradingRepository) GetGradeKeyByID(ctx context.Context, id int) (grading.GradeKey, error) {
	var row gradeKeyRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM grade_keys WHERE id = ?`, id)
	if err != nil {
		return grading.GradeKey{}, trapNoRows(err, grading.ErrGradeKeyNotFound, "getting grade key")
	}
	return row.model()
}

func (repo *gradingRepository) QueryAllGradeKeys(ctx context.Context) ([]grading.GradeKey, error) {
	var rows []gradeKeyRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM grade_keys ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade keys")
	}
	keys := make([]grading.GradeKey, 0, len(rows))
	for _, r := range rows {
		key, err := r.model()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (repo *gradingRepository) GradeKeyHasResults(ctx context.Context, keyID int) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
			SELECT 1 FROM results r
			JOIN assessments a ON a.id = r.assessment_id
			WHERE a.grade_key_id = ?
		)`, keyID)
	if err != nil {
		return false, errors.Wrap(err, "checking grade key usage")
	}
	return exists, nil
}

func (repo *gradingRepository) UpdateGradeKey(ctx context.Context, key grading.GradeKey) (grading.GradeKey, error) {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE grade_keys SET name = ?, max = ?, definition = ?, updated_at = ? WHERE id = ?`,
		key.Name, key.Max, key.Definition(), key.UpdatedAt, key.ID)
	if err != nil {
		return grading.GradeKey{}, errors.Wrap(err, "updating grade key")
	}
	return key, nil
}

// Assessments

func (repo *gradingRepository) CreateAssessment(ctx context.Context, a grading.Assessment) (grading.Assessment, error) {
	res, err := repo.db.ExecContext(ctx,
		`INSERT INTO assessments (title, kind, class_id, course_id, date, max_score, weight, grade_key_id, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Kind, a.ClassID, a.CourseID, a.Date, a.MaxScore, a.Weight, a.GradeKeyID, a.Archived, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return grading.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return grading.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	a.ID = int(id)
	return a, nil
}

func (repo *gradingRepository) GetAssessmentByID(ctx context.Context, id int) (grading.Assessment, error) {
	var row assessmentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM assessments WHERE id = ?`, id)
	if err != nil {
		return grading.Assessment{}, trapNoRows(err, grading.ErrAssessmentNotFound, "getting assessment")
	}
	return row.model(), nil
}

func (repo *gradingRepository) FilterAssessments(ctx context.Context, filter grading.AssessmentFilter) ([]grading.Assessment, error) {
	query := `SELECT * FROM assessments`
	var conds []string
	var args []interface{}
	if filter.ClassID != 0 {
		conds = append(conds, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.CourseID != 0 {
		conds = append(conds, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, filter.Kind)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	var rows []assessmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering assessments")
	}
	assessments := make([]grading.Assessment, 0, len(rows))
	for _, r := range rows {
		assessments = append(assessments, r.model())
	}
	return assessments, nil
}

func (repo *gradingRepository) UpdateAssessment(ctx context.Context, a grading.Assessment) (grading.Assessment, error) {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE assessments SET title = ?, kind = ?, class_id = ?, course_id = ?, date = ?,
		 max_score = ?, weight = ?, grade_key_id = ?, archived = ?, updated_at = ? WHERE id = ?`,
		a.Title, a.Kind, a.ClassID, a.CourseID, a.Date, a.MaxScore, a.Weight, a.GradeKeyID, a.Archived, a.UpdatedAt, a.ID)
	if err != nil {
		return grading.Assessment{}, errors.Wrap(err, "updating assessment")
	}
	return a, nil
}

func (repo *gradingRepository) DeleteAssessment(ctx context.Context, id int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM assessments WHERE id = ?`, id)
	return errors.Wrap(err, "deleting assessment")
}

func (repo *gradingRepository) AssessmentHasResults(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM results WHERE assessment_id = ?)`, id)
	if err != nil {
		return false, errors.Wrap(err, "checking assessment results")
	}
	return exists, nil
}

// Results

func (repo *gradingRepository) UpsertResult(ctx context.Context, rec grading.ResultRecord) (grading.ResultRecord, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO results (assessment_id, student_id, raw_score, grade, comment, batch_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (assessment_id, student_id) DO UPDATE SET
			raw_score = excluded.raw_score,
			grade = excluded.grade,
			comment = excluded.comment,
			batch_id = excluded.batch_id,
			updated_at = excluded.updated_at`,
		rec.AssessmentID, rec.StudentID, rec.RawScore, rec.Grade, rec.Comment, rec.BatchID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return grading.ResultRecord{}, errors.Wrap(err, "upserting result")
	}
	// re-read for the generated id and the preserved created_at
	return repo.GetResult(ctx, rec.AssessmentID, rec.StudentID)
}

func (repo *gradingRepository) GetResult(ctx context.Context, assessmentID, studentID int) (grading.ResultRecord, error) {
	var row resultRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM results WHERE assessment_id = ? AND student_id = ?`, assessmentID, studentID)
	if err != nil {
		return grading.ResultRecord{}, trapNoRows(err, grading.ErrResultNotFound, "getting result")
	}
	return row.model(), nil
}

func (repo *gradingRepository) QueryResultsByAssessment(ctx context.Context, assessmentID int) ([]grading.ResultRecord, error) {
	var rows []resultRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM results WHERE assessment_id = ? ORDER BY student_id`, assessmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	results := make([]grading.ResultRecord, 0, len(rows))
	for _, r := range rows {
		results = append(results, r.model())
	}
	return results, nil
}

func (repo *gradingRepository) DeleteResult(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting result")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return grading.ErrResultNotFound
	}
	return nil
}
