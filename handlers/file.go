package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/greatsami/g-drive-clone/services"
	"github.com/greatsami/g-drive-clone/utils"

	"github.com/gin-gonic/gin"
)

type RenameFileRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

type MoveFileRequest struct {
	ParentID uint `json:"parent_id"`
}

// ListFiles lists one folder, or searches the whole tree when search is set.
func ListFiles(c *gin.Context) {
	userID := c.GetUint("user_id")
	page, pageSize := pageQuery(c)
	favourites, _ := strconv.ParseBool(c.DefaultQuery("favourites", "false"))

	out, err := getServices().File.ListFiles(c.Request.Context(), userID, services.ListFilesInput{
		ParentID:       queryUint(c, "parent_id"),
		Search:         c.Query("search"),
		FavouritesOnly: favourites,
		Page:           page,
		PageSize:       pageSize,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, out)
}

// UploadFile accepts one "file" part, or several "files" parts with optional
// "paths" values holding each file's relative path for folder uploads.
func UploadFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	parentID, _ := strconv.ParseUint(c.PostForm("parent_id"), 10, 64)

	form, err := c.MultipartForm()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if headers := form.File["files"]; len(headers) > 0 {
		uploadTree(c, userID, uint(parentID), headers, form.Value["paths"])
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "missing upload file")
		return
	}
	defer file.Close()

	created, err := getServices().File.UploadFile(c.Request.Context(), userID, uint(parentID), services.UploadInput{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Content:  file,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "upload complete", created)
}

func uploadTree(c *gin.Context, userID uint, parentID uint, headers []*multipart.FileHeader, paths []string) {
	items := make([]services.UploadInput, 0, len(headers))
	for i, header := range headers {
		file, err := header.Open()
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "failed to read upload "+header.Filename)
			return
		}
		defer file.Close()

		name := header.Filename
		if i < len(paths) && strings.TrimSpace(paths[i]) != "" {
			name = paths[i]
		}
		items = append(items, services.UploadInput{
			Name:     name,
			MimeType: header.Header.Get("Content-Type"),
			Size:     header.Size,
			Content:  file,
		})
	}

	created, err := getServices().File.UploadTree(c.Request.Context(), userID, parentID, items)
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "upload complete", gin.H{"files": created})
}

func RenameFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	file, err := getServices().File.Rename(c.Request.Context(), userID, fileID, req.Name)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, file)
}

func MoveFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req MoveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	file, err := getServices().File.Move(c.Request.Context(), userID, fileID, req.ParentID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, file)
}

func TrashFiles(c *gin.Context) {
	userID := c.GetUint("user_id")

	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	var (
		count int64
		err   error
	)
	if req.All {
		count, err = getServices().File.TrashAll(c.Request.Context(), userID, req.ParentID)
	} else {
		count, err = getServices().File.MoveToTrash(c.Request.Context(), userID, req.FileIDs)
	}
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "moved to trash", gin.H{"count": count})
}

func ToggleStar(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID, ok := parseIDParam(c)
	if !ok {
		return
	}

	starred, err := getServices().Favourite.Toggle(c.Request.Context(), userID, fileID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{"file_id": fileID, "starred": starred})
}
