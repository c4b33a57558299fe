package handlers

import (
	"context"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/services"
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DownloadRequest struct {
	selectionRequest
	Scope string `json:"scope"`
}

// DownloadFiles streams a single file, or a zip of the selection.
func DownloadFiles(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	serveDownload(c, services.DownloadInput{
		Scope:    services.DownloadScope(req.Scope),
		ParentID: req.ParentID,
		All:      req.All,
		FileIDs:  req.FileIDs,
	})
}

// GetDownload is the query-string form of DownloadFiles, usable as a plain link:
// /api/downloads?scope=my_files&ids=1,2 or ?parent_id=3&all=true.
func GetDownload(c *gin.Context) {
	all, _ := strconv.ParseBool(c.DefaultQuery("all", "false"))

	var ids []uint
	for _, raw := range strings.Split(c.Query("ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid id "+raw)
			return
		}
		ids = append(ids, uint(id))
	}

	serveDownload(c, services.DownloadInput{
		Scope:    services.DownloadScope(c.Query("scope")),
		ParentID: queryUint(c, "parent_id"),
		All:      all,
		FileIDs:  ids,
	})
}

func serveDownload(c *gin.Context, in services.DownloadInput) {
	ctx := c.Request.Context()
	userID := c.GetUint("user_id")
	archive := getServices().Archive

	out, err := archive.Download(ctx, userID, in)
	if respondServiceError(c, err) {
		return
	}
	// Generated archives are single use.
	defer func() {
		if err := archive.Discard(context.WithoutCancel(ctx), out); err != nil {
			logger.L().Warn("discard archive failed", zap.String("path", out.Path), zap.Error(err))
		}
	}()

	rc, err := archive.Open(ctx, out)
	if respondServiceError(c, err) {
		return
	}
	defer rc.Close()

	contentType := out.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": out.Name}),
	})
}
