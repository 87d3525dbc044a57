package grading

import (
	"errors"
	"strings"
	"testing"
)

func TestRunImportAcceptsTemplate(t *testing.T) {
	env := newTestEnv(t, "stud_1", "stud_2", "stud_3")

	src := "student;name;score;comment\n" +
		"stud_1;Lstud_1, Fstud_1;15;\n" +
		"stud_2;Lstud_2, Fstud_2;11,5;spät abgegeben\n" +
		"stud_3;Lstud_3, Fstud_3;20;\n"
	report, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(src), ColumnMapping{})
	if err != nil {
		t.Fatalf("RunImport() failed: %v", err)
	}
	if report.Outcome() != OutcomeAccepted {
		t.Fatalf("Outcome() = %q, want %q (rows: %+v)", report.Outcome(), OutcomeAccepted, report.Rows)
	}
	if report.Accepted != 3 || report.Rejected != 0 || report.Total != 3 {
		t.Fatalf("report counts = %d/%d/%d, want 3/0/3", report.Accepted, report.Rejected, report.Total)
	}
	if report.BatchID == "" {
		t.Error("report.BatchID is empty")
	}

	results, err := env.svc.QueryResults(testCtx, env.assessment.ID)
	if err != nil {
		t.Fatalf("QueryResults() failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("QueryResults() returned %d records, want 3", len(results))
	}
	for _, rec := range results {
		if rec.BatchID != report.BatchID {
			t.Errorf("record %d BatchID = %q, want %q", rec.StudentID, rec.BatchID, report.BatchID)
		}
	}
	// decimal comma in stud_2's row, and its comment carried over
	if results[1].RawScore != 11.5 || results[1].Comment != "spät abgegeben" {
		t.Errorf("stud_2 record = %+v, want raw score 11.5 and the comment", results[1])
	}
}

func TestRunImportCommaDelimiterAndBOM(t *testing.T) {
	env := newTestEnv(t, "stud_1", "stud_2")

	src := "\xEF\xBB\xBFstudent,score,comment\n" +
		"stud_1,15,\n" +
		"stud_2,12.5,ok\n"
	report, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(src), ColumnMapping{})
	if err != nil {
		t.Fatalf("RunImport() failed: %v", err)
	}
	if report.Outcome() != OutcomeAccepted {
		t.Fatalf("Outcome() = %q, want %q (rows: %+v)", report.Outcome(), OutcomeAccepted, report.Rows)
	}
}

func TestRunImportRowFaultIsolation(t *testing.T) {
	env := newTestEnv(t,
		"stud_1", "stud_2", "stud_3", "stud_4", "stud_5",
		"stud_6", "stud_7", "stud_8", "stud_9", "stud_10")

	var sb strings.Builder
	sb.WriteString("student;score;comment\n")
	for i, id := range []string{"stud_1", "stud_2", "stud_3", "stud_4", "stud_5"} {
		sb.WriteString(id + ";1" + string(rune('0'+i)) + ";\n")
	}
	sb.WriteString("stud_6;only-two-fields\n") // row 7, malformed
	for _, id := range []string{"stud_7", "stud_8", "stud_9", "stud_10"} {
		sb.WriteString(id + ";15;\n")
	}

	report, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(sb.String()), ColumnMapping{})
	if err != nil {
		t.Fatalf("RunImport() failed: %v", err)
	}
	if report.Outcome() != OutcomePartial {
		t.Fatalf("Outcome() = %q, want %q", report.Outcome(), OutcomePartial)
	}
	if report.Accepted != 9 || report.Rejected != 1 {
		t.Fatalf("report counts = %d accepted / %d rejected, want 9/1", report.Accepted, report.Rejected)
	}

	var bad RowOutcome
	for _, row := range report.Rows {
		if row.Status == StatusRejected {
			bad = row
		}
	}
	if bad.Row != 7 {
		t.Errorf("rejected row = %d, want 7 (header is row 1)", bad.Row)
	}
	if !strings.Contains(bad.Reason, "malformed") {
		t.Errorf("rejected reason = %q, want a malformed-row reason", bad.Reason)
	}
	if bad.Raw != "stud_6;only-two-fields" {
		t.Errorf("rejected raw = %q, want the original line", bad.Raw)
	}
}

func TestRunImportScoreParseError(t *testing.T) {
	env := newTestEnv(t, "stud_1", "stud_2")

	src := "student;score;comment\n" +
		"stud_1;abc;\n" +
		"stud_2;12;\n"
	report, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(src), ColumnMapping{})
	if err != nil {
		t.Fatalf("RunImport() failed: %v", err)
	}
	if report.Accepted != 1 || report.Rejected != 1 {
		t.Fatalf("report counts = %d accepted / %d rejected, want 1/1", report.Accepted, report.Rejected)
	}

	bad := report.Rows[0]
	if bad.Row != 2 || bad.Status != StatusRejected {
		t.Fatalf("first row outcome = %+v, want rejected row 2", bad)
	}
	if !strings.Contains(bad.Reason, "parse error") || !strings.Contains(bad.Reason, "abc") {
		t.Errorf("reason = %q, want a parse error naming the bad value", bad.Reason)
	}
	// the row after the bad one was still processed
	if report.Rows[1].Status != StatusAccepted || report.Rows[1].Row != 3 {
		t.Errorf("second row outcome = %+v, want accepted row 3", report.Rows[1])
	}
}

func TestRunImportIdempotentReRun(t *testing.T) {
	env := newTestEnv(t, "stud_41", "stud_42")
	svc := env.svc

	first := "student;score;comment\nstud_41;10;\nstud_42;nonsense;\n"
	report1, err := svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(first), ColumnMapping{})
	if err != nil {
		t.Fatalf("first RunImport() failed: %v", err)
	}
	if report1.Outcome() != OutcomePartial {
		t.Fatalf("first Outcome() = %q, want %q", report1.Outcome(), OutcomePartial)
	}

	// corrected file, re-uploaded in full
	second := "student;score;comment\nstud_41;10;\nstud_42;13;\n"
	report2, err := svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(second), ColumnMapping{})
	if err != nil {
		t.Fatalf("second RunImport() failed: %v", err)
	}
	if report2.Outcome() != OutcomeAccepted {
		t.Fatalf("second Outcome() = %q, want %q (rows: %+v)", report2.Outcome(), OutcomeAccepted, report2.Rows)
	}

	results, err := svc.QueryResults(testCtx, env.assessment.ID)
	if err != nil {
		t.Fatalf("QueryResults() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("QueryResults() returned %d records, want 2 (re-run must upsert, not duplicate)", len(results))
	}
}

func TestRunImportUnknownStudentSuggestion(t *testing.T) {
	env := newTestEnv(t, "stud_42")

	src := "student;score;comment\nstud_24;10;\n"
	report, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(src), ColumnMapping{})
	if err != nil {
		t.Fatalf("RunImport() failed: %v", err)
	}
	if report.Outcome() != OutcomeRejected {
		t.Fatalf("Outcome() = %q, want %q", report.Outcome(), OutcomeRejected)
	}
	reason := report.Rows[0].Reason
	if !strings.Contains(reason, `unknown student "stud_24"`) {
		t.Errorf("reason = %q, want an unknown-student reason", reason)
	}
	if !strings.Contains(reason, "stud_42") {
		t.Errorf("reason = %q, want the closest roster match suggested", reason)
	}
}

func TestRunImportUnrecognizedFormat(t *testing.T) {
	env := newTestEnv(t, "stud_1")

	tests := []struct {
		name string
		src  string
	}{
		{name: "no delimiter", src: "student\tscore\nstud_1\t10\n"},
		{name: "ambiguous delimiters", src: "student,name;score\nstud_1,x;10\n"},
		{name: "empty file", src: ""},
		{name: "missing score column", src: "student;name\nstud_1;x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(tt.src), ColumnMapping{})
			if !errors.Is(err, ErrUnrecognizedFormat) {
				t.Errorf("RunImport() error = %v, wantErr %v", err, ErrUnrecognizedFormat)
			}
		})
	}
}

func TestRunImportCustomColumnMapping(t *testing.T) {
	env := newTestEnv(t, "stud_1")

	src := "Schüler;Punkte;Bemerkung\nstud_1;15;gut gemacht\n"
	mapping := ColumnMapping{Student: "schüler", Score: "punkte", Comment: "bemerkung"}
	report, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(src), mapping)
	if err != nil {
		t.Fatalf("RunImport() failed: %v", err)
	}
	if report.Outcome() != OutcomeAccepted {
		t.Fatalf("Outcome() = %q, want %q (rows: %+v)", report.Outcome(), OutcomeAccepted, report.Rows)
	}

	rec, err := env.svc.repo.GetResult(testCtx, env.assessment.ID, env.roster[0].ID)
	if err != nil {
		t.Fatalf("GetResult() failed: %v", err)
	}
	if rec.Comment != "gut gemacht" {
		t.Errorf("rec.Comment = %q, want %q", rec.Comment, "gut gemacht")
	}
}

func TestRunImportSkipsBlankLines(t *testing.T) {
	env := newTestEnv(t, "stud_1", "stud_2")

	src := "student;score;comment\n\nstud_1;10;\n   \nstud_2;12;\n\n"
	report, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(src), ColumnMapping{})
	if err != nil {
		t.Fatalf("RunImport() failed: %v", err)
	}
	if report.Total != 2 || report.Accepted != 2 {
		t.Fatalf("report counts = %d total / %d accepted, want 2/2", report.Total, report.Accepted)
	}
	// row numbers count blank lines so they match the spreadsheet
	if report.Rows[0].Row != 3 || report.Rows[1].Row != 5 {
		t.Errorf("row numbers = %d, %d, want 3, 5", report.Rows[0].Row, report.Rows[1].Row)
	}
}

func TestRunImportArchivedAssessment(t *testing.T) {
	env := newTestEnv(t, "stud_1")

	if _, err := env.svc.ArchiveAssessment(testCtx, env.assessment.ID); err != nil {
		t.Fatalf("ArchiveAssessment() failed: %v", err)
	}
	src := "student;score;comment\nstud_1;10;\n"
	if _, err := env.svc.RunImport(testCtx, env.assessment.ID, strings.NewReader(src), ColumnMapping{}); !errors.Is(err, ErrAssessmentArchived) {
		t.Errorf("RunImport() error = %v, wantErr %v", err, ErrAssessmentArchived)
	}
}

func TestLockAssessment(t *testing.T) {
	svc := newTestService(t)

	release, err := svc.lockAssessment(1)
	if err != nil {
		t.Fatalf("lockAssessment() failed: %v", err)
	}
	if _, err := svc.lockAssessment(1); !errors.Is(err, ErrImportInProgress) {
		t.Errorf("second lockAssessment() error = %v, wantErr %v", err, ErrImportInProgress)
	}

	// a different assessment is unaffected
	otherRelease, err := svc.lockAssessment(2)
	if err != nil {
		t.Fatalf("lockAssessment(2) failed: %v", err)
	}
	otherRelease()

	release()
	release2, err := svc.lockAssessment(1)
	if err != nil {
		t.Errorf("lockAssessment() after release failed: %v", err)
	} else {
		release2()
	}
}
