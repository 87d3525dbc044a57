package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/homer1989/lehrerdb-v4/core"
	"github.com/homer1989/lehrerdb-v4/core/grading"
	"github.com/homer1989/lehrerdb-v4/core/student"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			code, message = domainErrorStatus(origErr)
			if code == http.StatusInternalServerError {
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// domainErrorStatus maps domain sentinel errors to HTTP statuses.
func domainErrorStatus(err error) (int, interface{}) {
	switch err {
	case grading.ErrGradeKeyNotFound,
		grading.ErrAssessmentNotFound,
		grading.ErrResultNotFound,
		student.ErrNotFound:
		return http.StatusNotFound, err.Error()
	case grading.ErrDuplicateName,
		grading.ErrInvalidRange,
		grading.ErrUnknownStudent,
		grading.ErrNotEnrolled,
		grading.ErrScoreOutOfRange,
		grading.ErrUnrecognizedFormat,
		student.ErrIdentifierExists:
		return http.StatusBadRequest, err.Error()
	case grading.ErrGradeKeyInUse,
		grading.ErrAssessmentArchived,
		grading.ErrAssessmentHasResults,
		grading.ErrImportInProgress:
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, nil
}
