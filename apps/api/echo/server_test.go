package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homer1989/lehrerdb-v4/core"
	"github.com/homer1989/lehrerdb-v4/core/grading"
	"github.com/homer1989/lehrerdb-v4/core/student"
	dummydb "github.com/homer1989/lehrerdb-v4/storage/database/dummy"
)

var testCtx = context.Background()

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testServer struct {
	*Server
	gradingSvc *grading.Service
	studentSvc *student.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	studentSvc := student.NewService(dummydb.NewStudentRepository(db))
	gradingSvc := grading.NewService(dummydb.NewGradingRepository(db), studentSvc)

	srv := NewServer(ServerDeps{
		Conf:       &core.Config{TestMode: true},
		Logger:     nopLogger{},
		GradingSvc: gradingSvc,
		StudentSvc: studentSvc,
	})
	return &testServer{Server: srv, gradingSvc: gradingSvc, studentSvc: studentSvc}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.app.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newUploadRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantData []byte) {
	t.Helper()
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(wantData))
	}
}

// fixtures

var standardBands = []grading.Band{
	{Label: "nicht bestanden", Lower: 0, Upper: 60},
	{Label: "befriedigend", Lower: 60, Upper: 75},
	{Label: "gut", Lower: 75, Upper: 100},
}

func createGradeKey(t *testing.T, ts *testServer, name string) grading.GradeKey {
	t.Helper()
	key, err := ts.gradingSvc.CreateGradeKey(testCtx, grading.NewGradeKey{Name: name, Max: 100, Bands: standardBands})
	require.NoError(t, err)
	return key
}

func createAssessment(t *testing.T, ts *testServer, keyID, classID int) grading.Assessment {
	t.Helper()
	a, err := ts.gradingSvc.CreateAssessment(testCtx, grading.NewAssessment{
		Title: "Klausur 1", Kind: grading.KindKlausur, ClassID: classID,
		MaxScore: 20, Weight: 1, GradeKeyID: keyID,
	})
	require.NoError(t, err)
	return a
}

func createStudent(t *testing.T, ts *testServer, identifier string, classID int) student.Student {
	t.Helper()
	std, err := ts.studentSvc.Create(testCtx, student.NewStudent{
		Identifier: identifier, FirstName: "Erika", LastName: "Musterfrau", ClassID: classID,
	})
	require.NoError(t, err)
	return std
}

func TestServerHome(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(newRequest(http.MethodGet, "/"))
	checkCodeAndData(t, rec, http.StatusOK, []byte(`{"service":"lehrerdb","status":"ok"}`))
}
