// Package echoreport ties fault reporting into Echo servers: handler
// panics become reported faults and a standard error response, while
// ordinary handler errors pass through untouched.
package echoreport

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/report"
	"github.com/faultline-labs/faultline/safe"
)

// Reporter is the part of the report.Reporter the middleware needs.
type Reporter interface {
	HandleError(ctx context.Context, err error) (report.Disposition, error)
}

var _ Reporter = (*report.Reporter)(nil)

// Recover returns middleware that reports recovered handler panics through
// the reporter and answers them with the standard error response.
func Recover(reporter Reporter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := safe.Run(func() error {
				return next(c)
			})
			switch errclass.Of(err) {
			case errclass.Nil:
				return nil
			case errclass.Panic:
				// The response is committed here; delivery failures from
				// the reporter have nowhere left to go.
				_, _ = reporter.HandleError(c.Request().Context(), err)
				c.Error(err)
				return nil
			default:
				return err
			}
		}
	}
}
