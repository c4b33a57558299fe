package handlers

import (
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
)

func HealthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "g-drive",
	})
}
