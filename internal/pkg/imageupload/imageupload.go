package imageupload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxBytes = 10 << 20
	chunkSize       = 64 << 10
)

var (
	ErrUnsupportedExtension   = errors.New("unsupported file extension")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrTooLarge               = errors.New("file too large")
	ErrEmpty                  = errors.New("file is empty")
	ErrCorruptImage           = errors.New("file is not a decodable image")
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".gif":  {},
}

var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/bmp":  {},
	"image/gif":  {},
	"image/webp": {},
}

// AllowedExtensions returns the accepted file extensions.
func AllowedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}
}

func CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	return nil
}

// CheckContentType accepts the declared multipart content type, ignoring
// parameters such as charset.
func CheckContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if _, ok := allowedContentTypes[ct]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return nil
}

// ReadLimited reads r in fixed chunks and fails with ErrTooLarge as soon as
// more than maxBytes have been seen. Exactly maxBytes is accepted.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if int64(buf.Len()+n) > maxBytes {
				return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes)
			}
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read upload failed: %w", err)
		}
	}
	if buf.Len() == 0 {
		return nil, ErrEmpty
	}
	return buf.Bytes(), nil
}

// VerifyDecodable checks that data parses as a supported image and returns
// its format name and dimensions.
func VerifyDecodable(data []byte) (string, image.Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", image.Config{}, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", image.Config{}, fmt.Errorf("%w: empty dimensions", ErrCorruptImage)
	}
	return format, cfg, nil
}

// Downscale shrinks images whose longest side exceeds maxDim and re-encodes
// them as JPEG. Smaller images and undecodable input are returned untouched
// with their original mime type.
func Downscale(data []byte, mimeType string, maxDim int) ([]byte, string, error) {
	if maxDim <= 0 {
		return data, mimeType, nil
	}
	_, cfg, err := VerifyDecodable(data)
	if err != nil {
		return data, mimeType, nil
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, mimeType, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image failed: %w", err)
	}
	if cfg.Width >= cfg.Height {
		img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", fmt.Errorf("encode resized image failed: %w", err)
	}
	return out.Bytes(), "image/jpeg", nil
}

// NormalizeMimeType lowercases a media type and maps the non-standard
// image/jpg alias to image/jpeg.
func NormalizeMimeType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" || mediaType == "image/pjpeg" {
		return "image/jpeg"
	}
	return mediaType
}

// MimeTypeForFilename maps an extension to the mime type sent upstream.
func MimeTypeForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}
