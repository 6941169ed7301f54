package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/canopyhq/canopy/internal"
)

// AccessLog logs one line per request once the handler returns. Put it
// after RequestID so the line carries the request id.
func AccessLog() internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			start := time.Now()
			err := next(c)

			rw := c.ResponseWriter()
			status := rw.Status()
			if err != nil && !rw.Written() {
				// the error handler has not answered yet
				status = http.StatusInternalServerError
				if herr := internal.AsHTTPError(err); herr != nil {
					status = herr.Code
				}
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			req := c.Request()
			c.Logger().Log(c.Context(), level, "request",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", status),
				slog.Int64("bytes", rw.Size()),
				slog.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}
