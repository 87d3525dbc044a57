package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/homer1989/lehrerdb-v4/core/student"
)

type studentApi struct {
	service *student.Service
}

func RegisterStudentAPI(g *echo.Group, svc *student.Service) {
	api := studentApi{service: svc}

	sg := g.Group("/students")
	sg.POST("", api.studentCreate)
	sg.GET("", api.studentQuery)
	sg.GET("/:id", api.studentRetrieve)
}

func (api *studentApi) studentCreate(ctx echo.Context) error {
	data := new(student.NewStudent)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.service); err != nil {
		return err
	}

	std, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, std)
}

// studentQuery lists a class or course roster; one of class_id or course_id is required.
func (api *studentApi) studentQuery(ctx echo.Context) error {
	if classID, err := strconv.Atoi(ctx.QueryParam("class_id")); err == nil && classID > 0 {
		students, err := api.service.QueryByClass(ctx.Request().Context(), classID)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, students)
	}
	if courseID, err := strconv.Atoi(ctx.QueryParam("course_id")); err == nil && courseID > 0 {
		students, err := api.service.QueryByCourse(ctx.Request().Context(), courseID)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, students)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "one of class_id or course_id is required")
}

func (api *studentApi) studentRetrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	std, err := api.service.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, std)
}
