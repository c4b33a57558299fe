package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/services"
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var appServices *services.Container

func SetServices(container *services.Container) {
	appServices = container
}

func getServices() *services.Container {
	if appServices == nil {
		panic("services container is not initialized")
	}
	return appServices
}

func respondServiceError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode >= http.StatusInternalServerError {
			logger.L().Error("request failed",
				zap.String("path", c.FullPath()),
				zap.String("message", appErr.Message),
				zap.Error(appErr.Err))
		}
		if appErr.Data != nil {
			utils.ErrorWithData(c, appErr.HTTPCode, appErr.Message, appErr.Data)
		} else {
			utils.Error(c, appErr.HTTPCode, appErr.Message)
		}
		return true
	}
	logger.L().Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
	utils.Error(c, http.StatusInternalServerError, "internal error")
	return true
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Error(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, key string) uint {
	v, _ := strconv.ParseUint(c.Query(key), 10, 64)
	return uint(v)
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return page, pageSize
}

// selectionRequest is the common body of bulk operations: either explicit
// ids or every child of parent_id.
type selectionRequest struct {
	ParentID uint   `json:"parent_id"`
	All      bool   `json:"all"`
	FileIDs  []uint `json:"file_ids"`
}
