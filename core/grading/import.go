package grading

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/homer1989/lehrerdb-v4/core"
	"github.com/homer1989/lehrerdb-v4/core/student"
)

// Row outcome statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Overall report outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomePartial  = "partial"
	OutcomeRejected = "rejected"
)

// suggestMinRatio is the minimum difflib similarity for a closest-match
// suggestion on an unknown student identifier.
const suggestMinRatio = 0.75

// ColumnMapping names the upload columns carrying the student identifier, the
// raw score and the optional comment. Header matching is case-insensitive;
// unmapped columns are ignored.
type ColumnMapping struct {
	Student string `json:"student"`
	Score   string `json:"score"`
	Comment string `json:"comment"`
}

// DefaultColumnMapping matches the template produced by CSVTemplate.
var DefaultColumnMapping = ColumnMapping{Student: "student", Score: "score", Comment: "comment"}

func (m ColumnMapping) withDefaults() ColumnMapping {
	if m.Student == "" {
		m.Student = DefaultColumnMapping.Student
	}
	if m.Score == "" {
		m.Score = DefaultColumnMapping.Score
	}
	if m.Comment == "" {
		m.Comment = DefaultColumnMapping.Comment
	}
	return m
}

// RowOutcome is the disposition of a single data row. Row numbers are
// spreadsheet line numbers: the header is row 1, the first data row is row 2.
type RowOutcome struct {
	Row     int    `json:"row"`
	Student string `json:"student,omitempty"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Raw     string `json:"raw,omitempty"` // original line, retained for rejected rows
}

// ImportReport is the serializable result of one import batch: the ordered
// per-row outcomes plus aggregate counts.
type ImportReport struct {
	BatchID      string       `json:"batch_id"`
	AssessmentID int          `json:"assessment_id"`
	Rows         []RowOutcome `json:"rows"`
	Accepted     int          `json:"accepted"`
	Rejected     int          `json:"rejected"`
	Total        int          `json:"total"`
}

// Outcome summarizes the batch for presentation: "accepted" (all rows taken),
// "partial" (some rejected) or "rejected" (nothing accepted).
func (r *ImportReport) Outcome() string {
	switch {
	case r.Rejected == 0:
		return OutcomeAccepted
	case r.Accepted > 0:
		return OutcomePartial
	default:
		return OutcomeRejected
	}
}

func (r *ImportReport) addAccepted(row int, studentID string) {
	r.Rows = append(r.Rows, RowOutcome{Row: row, Student: studentID, Status: StatusAccepted})
	r.Accepted++
	r.Total++
}

func (r *ImportReport) addRejected(row int, studentID, reason, raw string) {
	r.Rows = append(r.Rows, RowOutcome{Row: row, Student: studentID, Status: StatusRejected, Reason: reason, Raw: raw})
	r.Rejected++
	r.Total++
}

// lockAssessment acquires the per-assessment advisory import lock. It fails
// fast when another import for the same assessment is running.
func (svc *Service) lockAssessment(id int) (func(), error) {
	svc.mu.Lock()
	lock, ok := svc.importLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		svc.importLocks[id] = lock
	}
	svc.mu.Unlock()

	if !lock.TryLock() {
		return nil, ErrImportInProgress
	}
	return lock.Unlock, nil
}

// RunImport ingests a CSV upload of one assessment's results with row-level
// fault isolation: one bad row never aborts the batch, and accepted rows are
// committed individually so a re-run after corrections remains idempotent
// (upsert by (assessment, student)). The only whole-batch failure is an
// unrecognized file format, detected before any row is processed.
func (svc *Service) RunImport(ctx context.Context, assessmentID int, src io.Reader, mapping ColumnMapping) (*ImportReport, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if a.Archived {
		return nil, ErrAssessmentArchived
	}
	key, err := svc.repo.GetGradeKeyByID(ctx, a.GradeKeyID)
	if err != nil {
		return nil, err
	}

	release, err := svc.lockAssessment(a.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	roster, err := svc.roster(ctx, a)
	if err != nil {
		return nil, err
	}
	byIdentifier := make(map[string]student.Student, len(roster))
	for _, std := range roster {
		byIdentifier[std.Identifier] = std
	}

	rdr := bufio.NewReader(src)
	header, delim, err := readHeader(rdr)
	if err != nil {
		return nil, err
	}
	mapping = mapping.withDefaults()
	cols, err := locateColumns(header, mapping)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{
		BatchID:      uuid.New().String(),
		AssessmentID: a.ID,
	}

	row := 1 // header
	sc := bufio.NewScanner(rdr)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		row++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		fields, splitErr := splitRow(raw, delim)
		if splitErr != nil {
			report.addRejected(row, "", fmt.Sprintf("malformed row: %v", splitErr), raw)
			continue
		}
		if len(fields) != len(header) {
			report.addRejected(row, "",
				fmt.Sprintf("malformed row: expected %d fields, got %d", len(header), len(fields)), raw)
			continue
		}

		identifier := core.CleanString(fields[cols.student])
		if identifier == "" {
			report.addRejected(row, "", "malformed row: missing student identifier", raw)
			continue
		}
		std, ok := byIdentifier[identifier]
		if !ok {
			reason := fmt.Sprintf("unknown student %q", identifier)
			if match := closestMatch(identifier, roster); match != "" {
				reason += fmt.Sprintf(" (closest roster match: %s)", match)
			}
			report.addRejected(row, identifier, reason, raw)
			continue
		}

		rawScore, parseErr := parseScore(fields[cols.score], delim)
		if parseErr != nil {
			report.addRejected(row, identifier, parseErr.Error(), raw)
			continue
		}

		var comment string
		if cols.comment >= 0 {
			comment = core.CleanString(fields[cols.comment])
		}

		if _, recErr := svc.record(ctx, a, key, std, rawScore, comment, report.BatchID); recErr != nil {
			report.addRejected(row, identifier, rejectReason(recErr, rawScore, a.MaxScore), raw)
			continue
		}
		report.addAccepted(row, identifier)
	}
	if scanErr := sc.Err(); scanErr != nil {
		return nil, scanErr
	}
	return report, nil
}

// readHeader strips a UTF-8 byte-order mark, reads the header line and detects
// the delimiter from it. Neither delimiter present, or both equally present,
// fails the whole batch as an unrecognized format.
func readHeader(rdr *bufio.Reader) ([]string, rune, error) {
	if bom, err := rdr.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = rdr.Discard(3)
	}

	line, err := rdr.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, 0, ErrUnrecognizedFormat
	}

	semis := strings.Count(line, ";")
	commas := strings.Count(line, ",")
	var delim rune
	switch {
	case semis > commas:
		delim = ';'
	case commas > semis:
		delim = ','
	default:
		return nil, 0, ErrUnrecognizedFormat
	}

	fields, err := splitRow(line, delim)
	if err != nil {
		return nil, 0, ErrUnrecognizedFormat
	}
	return fields, delim, nil
}

type columnIndexes struct {
	student, score, comment int
}

// locateColumns resolves the mapping against the header, case-insensitively.
// A missing student or score column fails the batch; the comment column is
// optional.
func locateColumns(header []string, mapping ColumnMapping) (columnIndexes, error) {
	cols := columnIndexes{student: -1, score: -1, comment: -1}
	for i, name := range header {
		switch core.CleanString(name, true) {
		case strings.ToLower(mapping.Student):
			cols.student = i
		case strings.ToLower(mapping.Score):
			cols.score = i
		case strings.ToLower(mapping.Comment):
			cols.comment = i
		}
	}
	if cols.student < 0 || cols.score < 0 {
		return cols, ErrUnrecognizedFormat
	}
	return cols, nil
}

// splitRow parses a single physical line as one CSV record, honoring quoting.
func splitRow(line string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.FieldsPerRecord = -1
	return r.Read()
}

// parseScore parses the score field. Spreadsheet exports using the semicolon
// delimiter commonly carry decimal commas; those are tolerated.
func parseScore(field string, delim rune) (float64, error) {
	s := core.CleanString(field)
	if s == "" {
		return 0, fmt.Errorf("parse error: empty score")
	}
	if delim == ';' {
		s = strings.Replace(s, ",", ".", 1)
	}
	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse error: score %q is not a number", core.CleanString(field))
	}
	return score, nil
}

// closestMatch returns the roster identifier most similar to the unknown one,
// or "" when nothing is close enough.
func closestMatch(identifier string, roster []student.Student) string {
	var best string
	bestRatio := suggestMinRatio
	left := strings.Split(strings.ToLower(identifier), "")
	for _, std := range roster {
		for _, candidate := range []string{std.Identifier, std.DisplayName()} {
			right := strings.Split(strings.ToLower(candidate), "")
			if ratio := difflib.NewMatcher(left, right).QuickRatio(); ratio >= bestRatio {
				bestRatio = ratio
				best = std.Identifier
			}
		}
	}
	return best
}

// rejectReason renders a row-scoped recording error for the report.
func rejectReason(err error, rawScore, maxScore float64) string {
	switch err {
	case ErrScoreOutOfRange:
		return fmt.Sprintf("score %v outside [0, %v]", rawScore, maxScore)
	case ErrNotEnrolled:
		return err.Error()
	case ErrOutOfRange:
		return "internal: " + err.Error()
	default:
		return "storage error: " + err.Error()
	}
}
