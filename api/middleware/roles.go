package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/acari-app/acari-backend/api/responses"
	"github.com/acari-app/acari-backend/pkg/enums"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

// AdminChecker confirms the admin role against persisted role rows.
type AdminChecker interface {
	HasRole(ctx context.Context, userID uuid.UUID, role enums.UserRole) (bool, error)
}

// RequireAdmin rejects callers without an admin row in user_roles. The JWT
// role claim alone is not trusted for back-office routes.
func RequireAdmin(checker AdminChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if checker == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "role checker unavailable"))
				return
			}
			userID := UserUUIDFromContext(ctx)
			if userID == uuid.Nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			ok, err := checker.HasRole(ctx, userID, enums.UserRoleAdmin)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check admin role"))
				return
			}
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
