package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/voicelab/auris/core/progress"
)

// actorCtxKey stores the request's progress.Actor in the echo context so the
// error handler can attach it to error reports.
const actorCtxKey = "actor"

type progressApi struct {
	svc *progress.Service
}

func registerProgressAPI(g *echo.Group, svc *progress.Service) {
	api := progressApi{svc: svc}

	pg := g.Group("/users/:uid/progress", api.actorMiddleware)
	pg.POST("", api.enroll)
	pg.GET("", api.get)
	pg.POST("/assessment", api.submitAssessment)
	pg.POST("/training", api.submitTraining)
	pg.POST("/align", api.align)
	pg.POST("/restart", api.restart)
	pg.POST("/revalidate", api.revalidate)
	pg.POST("/clear-timeout", api.clearTimeout)
}

// actorMiddleware builds the acting user from the path and the identity
// headers set by the upstream gateway.
func (api *progressApi) actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		uid := ctx.Param("uid")
		if uid == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "missing user id")
		}
		ctx.Set(actorCtxKey, progress.Actor{
			ID:    uid,
			Name:  ctx.Request().Header.Get("X-User-Name"),
			Email: ctx.Request().Header.Get("X-User-Email"),
		})
		return next(ctx)
	}
}

func actorFromCtx(ctx echo.Context) progress.Actor {
	actor, _ := ctx.Get(actorCtxKey).(progress.Actor)
	return actor
}

func (api *progressApi) enroll(ctx echo.Context) error {
	in := new(progress.EnrollInput)
	if err := ctx.Bind(in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}

	up, err := api.svc.Enroll(ctx.Request().Context(), actorFromCtx(ctx), in.ProgramID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, up)
}

func (api *progressApi) get(ctx echo.Context) error {
	up, err := api.svc.Get(ctx.Request().Context(), actorFromCtx(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, up)
}

func (api *progressApi) submitAssessment(ctx echo.Context) error {
	in := new(progress.AssessmentInput)
	if err := ctx.Bind(in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}

	up, err := api.svc.SubmitAssessment(ctx.Request().Context(), actorFromCtx(ctx), *in)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, up)
}

func (api *progressApi) submitTraining(ctx echo.Context) error {
	in := new(progress.TrainingInput)
	if err := ctx.Bind(in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}

	up, err := api.svc.SubmitTraining(ctx.Request().Context(), actorFromCtx(ctx), *in)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, up)
}

func (api *progressApi) align(ctx echo.Context) error {
	up, err := api.svc.Align(ctx.Request().Context(), actorFromCtx(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, up)
}

func (api *progressApi) restart(ctx echo.Context) error {
	up, err := api.svc.Restart(ctx.Request().Context(), actorFromCtx(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, up)
}

func (api *progressApi) revalidate(ctx echo.Context) error {
	up, err := api.svc.Revalidate(ctx.Request().Context(), actorFromCtx(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, up)
}

func (api *progressApi) clearTimeout(ctx echo.Context) error {
	up, err := api.svc.ClearTimeout(ctx.Request().Context(), actorFromCtx(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, up)
}
