package handlers

import (
	"net/http"

	"github.com/greatsami/g-drive-clone/services"
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
)

type TrashSelectionRequest struct {
	FileIDs []uint `json:"file_ids" binding:"required,min=1"`
}

func ListTrash(c *gin.Context) {
	userID := c.GetUint("user_id")
	page, pageSize := pageQuery(c)

	out, err := getServices().Trash.ListTrash(c.Request.Context(), userID, services.TrashListInput{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, out)
}

func RestoreTrash(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req TrashSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	count, err := getServices().Trash.Restore(c.Request.Context(), userID, req.FileIDs)
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "restored", gin.H{"count": count})
}

func DeleteTrash(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req TrashSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	count, err := getServices().Trash.DeleteForever(c.Request.Context(), userID, req.FileIDs)
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "deleted forever", gin.H{"count": count})
}

func EmptyTrash(c *gin.Context) {
	count, err := getServices().Trash.EmptyTrash(c.Request.Context(), c.GetUint("user_id"))
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "trash emptied", gin.H{"count": count})
}
