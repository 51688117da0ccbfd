package services

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/codyseavey/card-vault/internal/models"
)

const (
	defaultImageDir = "./data/card_photos"
	maxPhotoBytes   = 10 << 20
)

// PhotoURLPrefix is where stored photos are served from
const PhotoURLPrefix = "/images/"

// ErrInvalidImage wraps every rejection of uploaded photo data
var ErrInvalidImage = errors.New("invalid image")

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageStorageService stores uploaded card photos on disk
type ImageStorageService struct {
	storageDir string
}

// NewImageStorageService creates the storage directory if needed
func NewImageStorageService(storageDir string) *ImageStorageService {
	if storageDir == "" {
		storageDir = defaultImageDir
	}

	if err := os.MkdirAll(storageDir, 0755); err != nil {
		// writes will fail later with a clearer error
		log.Printf("Warning: could not create card photo directory: %v", err)
	}

	return &ImageStorageService{storageDir: storageDir}
}

// SaveImage writes the photo under a fresh name and returns its public path
func (s *ImageStorageService) SaveImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image data", ErrInvalidImage)
	}
	if len(data) > maxPhotoBytes {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrInvalidImage, maxPhotoBytes)
	}
	ext, ok := photoExtensions[http.DetectContentType(data)]
	if !ok {
		return "", fmt.Errorf("%w: unsupported type %q", ErrInvalidImage, http.DetectContentType(data))
	}

	filename := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(s.storageDir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return PhotoURLPrefix + filename, nil
}

// DeleteImage removes a previously stored photo. Paths that were not
// produced by SaveImage are ignored.
func (s *ImageStorageService) DeleteImage(photo string) error {
	if !strings.HasPrefix(photo, PhotoURLPrefix) || photo == models.PlaceholderPhoto {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(photo, PhotoURLPrefix))
	if name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.storageDir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// GetStorageDir returns the storage directory path
func (s *ImageStorageService) GetStorageDir() string {
	return s.storageDir
}
