package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/azgovernor/azgovernor/internal/pkg/errors"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
	"github.com/azgovernor/azgovernor/internal/pkg/utils"
)

// Recovery converts handler panics into 500 responses. Analyzer panics never
// reach here; the engine recovers those per category.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				log.WithFields(map[string]interface{}{
					"panic":      rec,
					"stack":      string(debug.Stack()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": GetRequestID(r),
				}).Error("Panic recovered")

				utils.WriteError(w, errors.Internal(
					"Internal server error",
					fmt.Errorf("panic: %v", rec),
				))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
