package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/voicelab/auris/core"
	"github.com/voicelab/auris/core/program"
	"github.com/voicelab/auris/core/progress"
)

// newAppHTTPErrorHandler is a custom HTTP error handler mapping domain
// errors to status codes. 5xx errors are reported to the logger; an
// application shutdown is triggered on integrity errors.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var httpErr *echo.HTTPError

		switch errT := err.(type) {
		case *echo.HTTPError:
			httpErr = errT
			if errT.Internal != nil {
				if herr, ok := errT.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
		case validator.ValidationErrors:
			fields := echo.Map{}
			for _, fe := range errT {
				fields[core.CleanString(fe.Field(), true /* firstToLower */)] = fe.Translate(core.Translator)
			}
			httpErr = echo.NewHTTPError(http.StatusBadRequest, fields)
		case *core.ValidationError:
			fields := echo.Map{}
			for _, fe := range errT.Fields {
				fields[fe.Field] = fe.Error
			}
			if len(fields) == 0 && errT.Err != nil {
				fields["detail"] = errT.Error()
			}
			httpErr = echo.NewHTTPError(http.StatusBadRequest, fields)
		default:
			switch errors.Cause(err) {
			case progress.ErrNotFound, program.ErrNotFound:
				httpErr = echo.NewHTTPError(http.StatusNotFound, err.Error())
			case progress.ErrExists, progress.ErrNotReady, progress.ErrAssessmentNotDone, progress.ErrInvalidated:
				httpErr = echo.NewHTTPError(http.StatusConflict, err.Error())
			default:
				httpErr = echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				httpErr.Internal = err

				actor, _ := ctx.Get(actorCtxKey).(progress.Actor)
				logger.Error(err.Error(), err, actor)

				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(httpErr.Code)
			} else {
				err = ctx.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
			}
			if err != nil {
				logger.Error(err.Error(), err)
			}
		}
	}
}
