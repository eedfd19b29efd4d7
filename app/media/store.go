package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jafsabakes/bakery-api/app/config"
	_ "golang.org/x/image/webp"
)

// Folder groups product images inside every backend.
const Folder = "products"

// ErrInvalidImage is wrapped by every ValidateImage failure.
var ErrInvalidImage = errors.New("invalid image")

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store persists uploaded images and returns the reference to keep on the
// product: a path relative to the media root, or an absolute URL.
type Store interface {
	Save(ctx context.Context, file *multipart.FileHeader) (string, error)
	// Delete removes an image by the reference Save returned. A missing
	// image is not an error.
	Delete(ctx context.Context, ref string) error
}

// NewStore builds the backend selected by MEDIA_BACKEND.
func NewStore(cf *config.Config) (Store, error) {
	switch cf.MediaBackend {
	case config.MediaCloudinary:
		return NewCloudinaryStore(cf.CloudinaryURL)
	case config.MediaLocal:
		return NewLocalStore(cf.MediaRoot)
	}
	return nil, fmt.Errorf("unsupported media backend %q", cf.MediaBackend)
}

// ValidateImage checks size, extension and that the content decodes as an image.
func ValidateImage(file *multipart.FileHeader, maxBytes int64) error {
	if file.Size > maxBytes {
		return fmt.Errorf("%w: file too large (max %d bytes)", ErrInvalidImage, maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: file extension %q is not allowed, allowed extensions are: gif, jpeg, jpg, png, webp", ErrInvalidImage, strings.TrimPrefix(ext, "."))
	}

	f, err := file.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("%w: the file you uploaded was either not an image or a corrupted image", ErrInvalidImage)
	}
	return nil
}

// ResolveURL turns a stored reference into an absolute URL for the client
// of r. Absolute http(s) references are returned unchanged.
func ResolveURL(r *http.Request, mediaURL, ref string) string {
	if u, err := url.Parse(ref); err == nil && webScheme(u.Scheme) && u.Host != "" {
		return ref
	}

	u := url.URL{
		Scheme: requestScheme(r),
		Host:   r.Host,
		Path:   strings.TrimSuffix(mediaURL, "/") + "/" + strings.TrimPrefix(ref, "/"),
	}
	return u.String()
}

// requestScheme trusts X-Forwarded-Proto only when its first hop names
// http or https.
func requestScheme(r *http.Request) string {
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	proto = strings.ToLower(strings.TrimSpace(proto))
	if webScheme(proto) {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func webScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}
