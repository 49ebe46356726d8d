package core

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminOnly ensures the authenticated user has the admin role.
// Tokens deliberately carry no role claim, so the current role is read
// from the repository; revoking admin takes effect immediately.
// Must run after RequireAuth.
func AdminOnly(users UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		u, err := users.FindByID(c.Request.Context(), identity.UserID)
		if err != nil {
			// A vanished user is a role failure; anything else is the datastore.
			if errors.Is(err, ErrNoRows) {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "管理者権限が必要です")
			} else {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load user")
			}
			c.Abort()
			return
		}
		if u.Role != "admin" {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "管理者権限が必要です")
			c.Abort()
			return
		}
		c.Next()
	}
}
