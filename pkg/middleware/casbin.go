package middleware

import (
	"net/http"

	"BranchLMS/internal/auth"
	"BranchLMS/internal/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Objects are echo route patterns, so ":empID" in a policy matches the same
// parameter in the route. Roles inherit through g.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// NewEnforcer builds the role policy from cfg.RBACPolicyFile.
func NewEnforcer(cfg *config.Config, log *zap.Logger) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "casbin model")
	}
	enf, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(cfg.RBACPolicyFile))
	if err != nil {
		return nil, errors.Wrapf(err, "load rbac policy %s", cfg.RBACPolicyFile)
	}
	policies, err := enf.GetPolicy()
	if err != nil {
		return nil, errors.Wrap(err, "read rbac policy")
	}
	log.Info("rbac policy loaded", zap.String("file", cfg.RBACPolicyFile), zap.Int("rules", len(policies)))
	return enf, nil
}

// Authorize allows the request when the admin's role may call the route.
// It must run after JWT.
func Authorize(enf *casbin.Enforcer, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := auth.FromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing admin claims")
			}
			obj, act := c.Path(), c.Request().Method
			allowed, err := enf.Enforce(claims.Role, obj, act)
			if err != nil {
				return errors.Wrap(err, "rbac enforce")
			}
			if !allowed {
				log.Info("rbac denied",
					zap.String("adminId", claims.AdminID),
					zap.String("role", claims.Role),
					zap.String("route", obj),
					zap.String("method", act))
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}
