package middleware

import (
	"net/http"

	"BranchLMS/internal/auth"
	"BranchLMS/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewHTTPErrorHandler maps domain errors to status codes. Only server errors
// are logged.
func NewHTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, message := status(err)
		if code >= http.StatusInternalServerError {
			fields := []zap.Field{
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
			}
			if claims, ok := auth.FromContext(c); ok {
				fields = append(fields, zap.String("adminId", claims.AdminID))
			}
			log.Error("request failed", fields...)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			log.Warn("writing error response", zap.Error(err))
		}
	}
}

func status(err error) (int, interface{}) {
	var (
		httpErr *echo.HTTPError
		vErr    *domain.ValidationError
		rErr    *domain.ReferentialIntegrityError
	)
	switch {
	case errors.As(err, &httpErr):
		if m, ok := httpErr.Message.(string); ok {
			return httpErr.Code, echo.Map{"error": m}
		}
		return httpErr.Code, httpErr.Message
	case errors.As(err, &vErr):
		body := echo.Map{"error": vErr.Error()}
		if len(vErr.Fields) > 0 {
			flds := make(map[string]string, len(vErr.Fields))
			for _, f := range vErr.Fields {
				flds[f.Field] = f.Error
			}
			body["fields"] = flds
		}
		return http.StatusBadRequest, body
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, echo.Map{"error": "invalid token"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, echo.Map{"error": err.Error()}
	case errors.As(err, &rErr), errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, echo.Map{"error": err.Error()}
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable, echo.Map{"error": "a backing service is unavailable, retry later"}
	}
	return http.StatusInternalServerError, echo.Map{"error": http.StatusText(http.StatusInternalServerError)}
}
