package handlers

import (
	"net/http"

	"github.com/greatsami/g-drive-clone/services"
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
)

type ShareRequest struct {
	selectionRequest
	Email string `json:"email" binding:"required,email"`
}

func ShareFiles(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	files, err := getServices().Share.ShareWith(c.Request.Context(), userID, services.ShareInput{
		ParentID: req.ParentID,
		All:      req.All,
		FileIDs:  req.FileIDs,
		Email:    req.Email,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "shared", gin.H{"files": files})
}

func sharedListInput(c *gin.Context) services.SharedListInput {
	page, pageSize := pageQuery(c)
	return services.SharedListInput{Search: c.Query("search"), Page: page, PageSize: pageSize}
}

func SharedWithMe(c *gin.Context) {
	out, err := getServices().Share.SharedWithMe(c.Request.Context(), c.GetUint("user_id"), sharedListInput(c))
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, out)
}

func SharedByMe(c *gin.Context) {
	out, err := getServices().Share.SharedByMe(c.Request.Context(), c.GetUint("user_id"), sharedListInput(c))
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, out)
}
