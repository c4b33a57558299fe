package handlers

import (
	"github.com/greatsami/g-drive-clone/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", HealthCheck)

	protected := api.Group("")
	protected.Use(middleware.Identity(getServices().User))
	{
		protected.GET("/users/me", GetProfile)

		protected.POST("/folders", CreateFolder)

		protected.GET("/files", ListFiles)
		protected.POST("/files/upload", UploadFile)
		protected.PUT("/files/:id/rename", RenameFile)
		protected.PUT("/files/:id/move", MoveFile)
		protected.POST("/files/trash", TrashFiles)
		protected.POST("/files/:id/star", ToggleStar)
		protected.POST("/files/share", ShareFiles)
		protected.POST("/files/download", DownloadFiles)
		protected.GET("/downloads", GetDownload)

		protected.GET("/shared-with-me", SharedWithMe)
		protected.GET("/shared-by-me", SharedByMe)

		protected.GET("/trash", ListTrash)
		protected.POST("/trash/restore", RestoreTrash)
		protected.POST("/trash/delete", DeleteTrash)
		protected.POST("/trash/empty", EmptyTrash)
	}
}
