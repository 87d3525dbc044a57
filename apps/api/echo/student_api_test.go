package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homer1989/lehrerdb-v4/core/student"
)

func TestStudentAPI(t *testing.T) {
	ts := newTestServer(t)

	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, student.NewStudent{
			Identifier: "stud_1", FirstName: "Max", LastName: "Mustermann", ClassID: 1,
		})
		rec := ts.do(newRequest(http.MethodPost, "/v1/students", body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var std student.Student
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &std))
		assert.NotZero(t, std.ID)
		assert.Equal(t, "Mustermann, Max", std.DisplayName())
	})

	t.Run("create duplicate identifier", func(t *testing.T) {
		body := marchallObj(t, student.NewStudent{
			Identifier: "stud_1", FirstName: "Moritz", LastName: "Mustermann", ClassID: 1,
		})
		rec := ts.do(newRequest(http.MethodPost, "/v1/students", body))
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		var fldErrs map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fldErrs))
		assert.Contains(t, fldErrs, "identifier")
	})

	t.Run("query by class", func(t *testing.T) {
		createStudent(t, ts, "stud_2", 1)
		rec := ts.do(newRequest(http.MethodGet, "/v1/students?class_id=1"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var students []student.Student
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
		assert.Len(t, students, 2)
	})

	t.Run("query without group", func(t *testing.T) {
		rec := ts.do(newRequest(http.MethodGet, "/v1/students"))
		checkCodeAndData(t, rec, http.StatusBadRequest, []byte(`{"error":"one of class_id or course_id is required"}`))
	})

	t.Run("retrieve missing", func(t *testing.T) {
		rec := ts.do(newRequest(http.MethodGet, fmt.Sprintf("/v1/students/%d", 999)))
		checkCodeAndData(t, rec, http.StatusNotFound, []byte(`{"error":"student not found"}`))
	})
}
