package middleware

import "github.com/labstack/echo/v4"

// Chain composes middleware into one. The first argument runs first; any
// step may short-circuit by writing a response instead of calling next.
func Chain(mws ...echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
