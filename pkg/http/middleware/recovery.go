package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "SentiTrade/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover converts a handler panic into a 500 handled by the echo error
// handler. http.ErrAbortHandler is re-raised so the server can drop the
// connection.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}
				l.Error("panic recovered",
					applogger.String("panic", fmt.Sprint(r)),
					applogger.String("method", c.Request().Method),
					applogger.String("route", c.Path()),
					applogger.String("stack", string(debug.Stack())),
				)
				err = echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
			}()
			return next(c)
		}
	}
}
