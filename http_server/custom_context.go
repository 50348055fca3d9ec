package http_server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type CustomContext struct {
	echo.Context
	RequestID string
}

// CreateReqContext binds a request ID (the caller's X-Request-Id when given) and the route to the
// request logger, and echoes the ID back so joins can be traced from the client.
func CreateReqContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Request().Header.Get(echo.HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, reqID)

		ctx := context.WithValue(c.Request().Context(), gologger.ReqIDKey, reqID)
		ctx = logger.With().Str("reqID", reqID).Str("route", c.Path()).Logger().WithContext(ctx)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(&CustomContext{
			Context:   c,
			RequestID: reqID,
		})
	}
}

// Casts to custom context for the handler, so this doesn't have to be done per handler
func ccHandler(h func(*CustomContext) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h(c.(*CustomContext))
	}
}

// Op tags the request logger with the operation the handler runs (join, merge, insert...) and
// returns the request context carrying it.
func (c *CustomContext) Op(op string) context.Context {
	ctx := c.Request().Context()
	ctx = zerolog.Ctx(ctx).With().Str("op", op).Logger().WithContext(ctx)
	c.SetRequest(c.Request().WithContext(ctx))
	return ctx
}

func (c *CustomContext) internalErrorMessage() string {
	return "internal error, request id: " + c.RequestID
}

func (c *CustomContext) InternalError(err error, msg string) error {
	logger := zerolog.Ctx(c.Request().Context())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Warn().CallerSkipFrame(1).Msg(err.Error())
	} else {
		logger.Error().CallerSkipFrame(1).Err(err).Msg(msg)
	}
	return c.String(http.StatusInternalServerError, c.internalErrorMessage())
}
