package media

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryStore uploads images to Cloudinary and keeps their secure URL.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(cloudinaryURL string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld}, nil
}

func (s *CloudinaryStore) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	result, err := s.cld.Upload.Upload(ctx, f, uploader.UploadParams{
		PublicID:     uuid.New().String(),
		Folder:       Folder,
		ResourceType: "image",
		Overwrite:    api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("upload failed: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

// Delete destroys the asset behind a secure URL returned by Save.
func (s *CloudinaryStore) Delete(ctx context.Context, ref string) error {
	publicID, err := publicIDFromURL(ref)
	if err != nil {
		return err
	}

	result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("destroy failed: %s", result.Error.Message)
	}
	return nil
}

// publicIDFromURL maps .../upload/v123/products/<uuid>.png back to the
// products/<uuid> id Save uploaded under.
func publicIDFromURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("not a Cloudinary URL: %q", ref)
	}
	dir, file := path.Split(u.Path)
	name := strings.TrimSuffix(file, path.Ext(file))
	if name == "" || path.Base(dir) != Folder {
		return "", fmt.Errorf("not a %s image: %q", Folder, ref)
	}
	return Folder + "/" + name, nil
}
