package handlers

import (
	"net/http"

	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
)

type CreateFolderRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	ParentID uint   `json:"parent_id"`
}

func CreateFolder(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	folder, err := getServices().Folder.CreateFolder(c.Request.Context(), userID, req.ParentID, req.Name)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, folder)
}
