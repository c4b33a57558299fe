package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/greatsami/g-drive-clone/services"
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
)

// Identity trusts the user headers set by the upstream gateway. The first
// request for an unknown id registers the user and creates their root.
func Identity(users services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || id == 0 {
			utils.Error(c, http.StatusUnauthorized, "missing user identity")
			c.Abort()
			return
		}

		user, err := users.EnsureUser(c.Request.Context(), services.IdentityInput{
			ID:       uint(id),
			Username: c.GetHeader("X-User-Name"),
			Email:    c.GetHeader("X-User-Email"),
			Nickname: c.GetHeader("X-User-Nickname"),
		})
		if err != nil {
			var appErr *services.AppError
			if errors.As(err, &appErr) {
				utils.Error(c, appErr.HTTPCode, appErr.Message)
			} else {
				utils.Error(c, http.StatusInternalServerError, "failed to resolve user")
			}
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Next()
	}
}
