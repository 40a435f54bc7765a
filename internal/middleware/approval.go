package middleware

import (
	"context"
	"net/http"

	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/repository"
)

const UserRoleKey contextKey = "user_role"

// GetUserRole returns the role loaded by RequireApproved, "" before it ran.
func GetUserRole(ctx context.Context) model.UserRole {
	v, _ := ctx.Value(UserRoleKey).(model.UserRole)
	return v
}

// RequireApproved loads the authenticated user and refuses anyone whose
// signup has not been approved by an admin, or whose account is disabled.
// Puts the user's role into the context for RequireRole.
func RequireApproved(userRepo *repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			user, err := userRepo.GetByID(r.Context(), userID)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if user.DisabledAt != nil {
				http.Error(w, `{"error":"account disabled"}`, http.StatusForbidden)
				return
			}
			if user.ApprovalStatus != model.ApprovalApproved {
				http.Error(w, `{"error":"account pending approval"}`, http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), UserRoleKey, user.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits only users with one of the given roles. Must run after
// RequireApproved.
func RequireRole(roles ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetUserRole(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		})
	}
}
