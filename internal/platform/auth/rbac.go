package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether the caller holds any of roles. Admin holds every role.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// IsSelf reports whether the caller is the user with the given id.
func IsSelf(ctx context.Context, id uuid.UUID) bool {
	uid := UserUUIDFromContext(ctx)
	return uid != uuid.Nil && uid == id
}

// RequireSelfOr rejects the request unless the caller is id or holds one of
// roles. Patients and doctors act only on their own records.
func RequireSelfOr(ctx context.Context, id uuid.UUID, roles ...string) error {
	if IsSelf(ctx, id) || HasRole(ctx, roles...) {
		return nil
	}
	return echo.NewHTTPError(http.StatusForbidden, "not permitted to act for another user")
}

// IsAdmin reports whether the caller is an administrator.
func IsAdmin(ctx context.Context) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}
