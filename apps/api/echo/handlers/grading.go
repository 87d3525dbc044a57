package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/homer1989/lehrerdb-v4/core/grading"
)

type gradingApi struct {
	service *grading.Service
}

func RegisterGradingAPI(g *echo.Group, svc *grading.Service) {
	api := gradingApi{service: svc}

	kg := g.Group("/grade-keys")
	kg.POST("", api.gradeKeyCreate)
	kg.GET("", api.gradeKeyQuery)
	kg.GET("/:id", api.gradeKeyRetrieve)
	kg.PUT("/:id", api.gradeKeyUpdate)

	ag := g.Group("/assessments")
	ag.POST("", api.assessmentCreate)
	ag.GET("", api.assessmentQuery)
	ag.GET("/:id", api.assessmentRetrieve)
	ag.DELETE("/:id", api.assessmentDestroy)
	ag.POST("/:id/archive", api.assessmentArchive)
	ag.GET("/:id/template", api.assessmentTemplate)
	ag.POST("/:id/results", api.resultRecord)
	ag.GET("/:id/results", api.resultQuery)
	ag.POST("/:id/import", api.resultImport)

	g.DELETE("/results/:id", api.resultDestroy)
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// Grade keys

func (api *gradingApi) gradeKeyCreate(ctx echo.Context) error {
	data := new(grading.NewGradeKey)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.service); err != nil {
		return err
	}

	key, err := api.service.CreateGradeKey(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, key)
}

func (api *gradingApi) gradeKeyQuery(ctx echo.Context) error {
	keys, err := api.service.QueryGradeKeys(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, keys)
}

func (api *gradingApi) gradeKeyRetrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	key, err := api.service.GetGradeKey(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, key)
}

func (api *gradingApi) gradeKeyUpdate(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	orig, err := api.service.GetGradeKey(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	data := new(grading.NewGradeKey)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(api.service, orig); err != nil {
		return err
	}

	key, err := api.service.UpdateGradeKey(ctx.Request().Context(), id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, key)
}

// Assessments

func (api *gradingApi) assessmentCreate(ctx echo.Context) error {
	data := new(grading.NewAssessment)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	a, err := api.service.CreateAssessment(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *gradingApi) assessmentQuery(ctx echo.Context) error {
	var filter grading.AssessmentFilter
	if err := ctx.Bind(&filter); err != nil {
		return err
	}
	assessments, err := api.service.FilterAssessments(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, assessments)
}

type assessmentDetail struct {
	grading.Assessment
	Results []grading.ResultRecord  `json:"results"`
	Stats   grading.AssessmentStats `json:"stats"`
}

func (api *gradingApi) assessmentRetrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	a, err := api.service.GetAssessment(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	results, err := api.service.QueryResults(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, assessmentDetail{
		Assessment: a,
		Results:    results,
		Stats:      grading.ComputeStats(results),
	})
}

func (api *gradingApi) assessmentDestroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.service.DeleteAssessment(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) assessmentArchive(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	a, err := api.service.ArchiveAssessment(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *gradingApi) assessmentTemplate(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	tmpl, err := api.service.CSVTemplate(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename=assessment_`+strconv.Itoa(id)+`.csv`)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", tmpl)
}

// Results

func (api *gradingApi) resultRecord(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	data := new(grading.NewResult)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(); err != nil {
		return err
	}

	rec, err := api.service.Record(ctx.Request().Context(), id, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *gradingApi) resultQuery(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	results, err := api.service.QueryResults(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *gradingApi) resultDestroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.service.DeleteResult(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// resultImport ingests a CSV upload and returns the import report. A fully
// accepted batch responds 200; a batch with rejected rows responds 422 with
// the same report so the caller can render the row-level details.
func (api *gradingApi) resultImport(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file upload")
	}
	src, err := fileHdr.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	mapping := grading.ColumnMapping{
		Student: ctx.FormValue("student_column"),
		Score:   ctx.FormValue("score_column"),
		Comment: ctx.FormValue("comment_column"),
	}

	report, err := api.service.RunImport(ctx.Request().Context(), id, src, mapping)
	if err != nil {
		return err
	}

	code := http.StatusOK
	if report.Outcome() != grading.OutcomeAccepted {
		code = http.StatusUnprocessableEntity
	}
	return ctx.JSON(code, report)
}
