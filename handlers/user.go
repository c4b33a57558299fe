package handlers

import (
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
)

func GetProfile(c *gin.Context) {
	userID := c.GetUint("user_id")
	profile, err := getServices().User.GetProfile(c.Request.Context(), userID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, profile)
}
