package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/app"
	"gopherai-insect/internal/pkg/imageupload"
	"gopherai-insect/internal/transport/http/response"
)

var errMissingFile = errors.New("missing file")

const (
	msgMissingFile         = "이미지 파일이 필요합니다. form 필드 'file'로 업로드해주세요."
	msgBadExtension        = "지원되지 않는 파일 형식입니다. jpg, png, jpeg, bmp, gif 파일만 업로드 가능합니다."
	msgBadContentType      = "지원되지 않는 이미지 형식입니다. JPEG, PNG, BMP, GIF, WEBP 이미지만 업로드 가능합니다."
	msgTooLarge            = "파일 크기가 너무 큽니다. 허용된 최대 크기 이하의 이미지를 업로드해주세요."
	msgCorruptImage        = "이미지 파일이 손상되었거나 읽을 수 없습니다."
	msgKeyMissing          = "Gemini API 키가 설정되지 않았습니다. /set-api-key 로 키를 설정해주세요."
	msgGeneratorMissing    = "이미지 생성 토큰(HUGGINGFACE_TOKEN)이 설정되지 않았습니다."
	msgVoiceMissing        = "음성 생성 API 키(GOOGLE_TTS_API_KEY)가 설정되지 않았습니다."
	msgUpstreamUnavailable = "외부 AI 서비스가 일시적으로 응답하지 않습니다. 잠시 후 다시 시도해주세요."
)

// writeError maps service and validation errors to HTTP responses. Anything
// unrecognised becomes a 500 whose detail names the failed action.
func writeError(c *gin.Context, err error, action string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, errMissingFile):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, msgMissingFile)
	case errors.Is(err, imageupload.ErrUnsupportedExtension):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, msgBadExtension)
	case errors.Is(err, imageupload.ErrUnsupportedContentType):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, msgBadContentType)
	case errors.Is(err, imageupload.ErrTooLarge), errors.As(err, &maxBytesErr):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, msgTooLarge)
	case errors.Is(err, imageupload.ErrEmpty), errors.Is(err, imageupload.ErrCorruptImage):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, msgCorruptImage)
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrAPIKeyNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, msgKeyMissing)
	case errors.Is(err, app.ErrGeneratorNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, msgGeneratorMissing)
	case errors.Is(err, app.ErrVoiceNotConfigured):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, msgVoiceMissing)
	case errors.Is(err, app.ErrUpstreamUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, msgUpstreamUnavailable)
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, action+" 중 오류가 발생했습니다: "+err.Error())
	}
}
