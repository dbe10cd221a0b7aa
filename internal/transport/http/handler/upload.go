package handler

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/pkg/imageupload"
	"gopherai-insect/internal/storage/localfs"
	"gopherai-insect/internal/transport/http/response"
)

// multipartOverhead is allowed on top of the file cap for form boundaries
// and the other fields.
const multipartOverhead = 1 << 20

// Uploads receives the multipart "file" field and writes it to the upload
// store. Strict mode checks the declared content type and decodes the image
// header; lenient mode checks only the extension.
type Uploads struct {
	store    *localfs.Storage
	maxBytes int64
}

type uploadedImage struct {
	Saved       *localfs.SavedFile
	Filename    string
	ContentType string
	Data        []byte
}

func NewUploads(store *localfs.Storage, maxBytes int64) *Uploads {
	if maxBytes <= 0 {
		maxBytes = imageupload.DefaultMaxBytes
	}
	return &Uploads{store: store, maxBytes: maxBytes}
}

func (u *Uploads) receive(c *gin.Context, prefix string, strict bool) (*uploadedImage, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, u.maxBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		return nil, errMissingFile
	}

	contentType := header.Header.Get("Content-Type")
	if strict {
		if err := imageupload.CheckContentType(contentType); err != nil {
			return nil, err
		}
	} else if err := imageupload.CheckExtension(header.Filename); err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := imageupload.ReadLimited(f, u.maxBytes)
	if err != nil {
		return nil, err
	}
	if strict {
		if _, _, err := imageupload.VerifyDecodable(data); err != nil {
			return nil, err
		}
	}

	saved, err := u.store.Save(prefix, header.Filename, data)
	if err != nil {
		return nil, err
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "image/") {
		contentType = imageupload.NormalizeMimeType(mediaType)
	} else {
		contentType = imageupload.MimeTypeForFilename(header.Filename)
	}
	return &uploadedImage{
		Saved:       saved,
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

type UploadHandler struct {
	uploads *Uploads
}

func NewUploadHandler(uploads *Uploads) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

func (h *UploadHandler) Upload(c *gin.Context) {
	img, err := h.uploads.receive(c, "", false)
	if err != nil {
		writeError(c, err, "파일 업로드")
		return
	}

	response.OK(c, gin.H{
		"message":     "이미지가 성공적으로 업로드되었습니다.",
		"filename":    img.Saved.Name,
		"file_path":   img.Saved.Path,
		"file_size":   img.Saved.Size,
		"upload_time": img.Saved.At.Format(time.RFC3339),
	})
}
