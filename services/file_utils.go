package services

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/greatsami/g-drive-clone/config"

	"github.com/google/uuid"
)

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	replacer := strings.NewReplacer("..", "_", "/", "_")
	return replacer.Replace(name)
}

func getMimeType(ext string) string {
	mimeTypes := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".pdf":  "application/pdf",
		".txt":  "text/plain",
		".md":   "text/markdown",
		".csv":  "text/csv",
		".mp4":  "video/mp4",
		".mp3":  "audio/mpeg",
		".zip":  "application/zip",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
	ext = strings.ToLower(ext)
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// blobPathFor names a new upload's blob; the original name never reaches
// the storage layer.
func blobPathFor(userID uint, fileName string) string {
	return fmt.Sprintf("files/%d/%s%s", userID, uuid.NewString(), strings.ToLower(filepath.Ext(fileName)))
}

func currentConfig() *config.Config {
	if config.AppConfig != nil {
		return config.AppConfig
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}
