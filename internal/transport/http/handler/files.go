package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/storage/localfs"
	"gopherai-insect/internal/transport/http/response"
)

// ServeStored serves a file by name from store, 404 for anything missing or
// not a plain file name.
func ServeStored(store *localfs.Storage, contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		path, err := store.Path(name)
		if err != nil || !store.Exists(name) {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "파일을 찾을 수 없습니다.")
			return
		}
		if contentType != "" {
			c.Header("Content-Type", contentType)
		}
		c.File(path)
	}
}
