package middleware

import (
	"BranchLMS/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// SetupMiddleware installs the middleware shared by every route.
func SetupMiddleware(e *echo.Echo, cfg *config.Config, log *zap.Logger) {
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(RequestLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
}

// RequestLogger writes one zap entry per request.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	log = log.Named("http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remoteIp", v.RemoteIP),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("requestId", v.RequestID))
			}
			if v.Status >= 500 {
				log.Warn("request", fields...)
			} else {
				log.Info("request", fields...)
			}
			return nil
		},
	})
}
