package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codyseavey/card-vault/internal/models"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestImageStorageSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewImageStorageService(dir)

	path, err := s.SaveImage(pngBytes)
	if err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}
	if !strings.HasPrefix(path, PhotoURLPrefix) || !strings.HasSuffix(path, ".png") {
		t.Errorf("SaveImage() = %q, want %s<uuid>.png", path, PhotoURLPrefix)
	}
	stored := filepath.Join(dir, strings.TrimPrefix(path, PhotoURLPrefix))
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	if err := s.DeleteImage(path); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Errorf("file still present after DeleteImage: %v", err)
	}
	if err := s.DeleteImage(path); err != nil {
		t.Errorf("second DeleteImage() error = %v, want nil", err)
	}
}

func TestImageStorageRejects(t *testing.T) {
	s := NewImageStorageService(t.TempDir())

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"too large", append(append([]byte{}, pngBytes...), make([]byte, maxPhotoBytes)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.SaveImage(tt.data); !errors.Is(err, ErrInvalidImage) {
				t.Errorf("SaveImage() error = %v, want %v", err, ErrInvalidImage)
			}
		})
	}
}

func TestImageStorageDeleteIgnoresForeignPaths(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "placeholder-card.png")
	if err := os.WriteFile(keep, pngBytes, 0644); err != nil {
		t.Fatal(err)
	}
	s := NewImageStorageService(dir)

	for _, photo := range []string{"", "https://cdn.example/card.jpg", "data:image/png;base64,AAAA", models.PlaceholderPhoto} {
		if err := s.DeleteImage(photo); err != nil {
			t.Errorf("DeleteImage(%q) error = %v", photo, err)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("placeholder was deleted: %v", err)
	}
}

func TestCollectionSetPhoto(t *testing.T) {
	ctx := t.Context()
	store := seededStore(card("1", "A", 10))
	images := NewImageStorageService(t.TempDir())
	svc := NewCollectionService(store, nil, images, NewTextSanitizer())

	updated, err := svc.SetPhoto(ctx, "u1", "1", pngBytes)
	if err != nil {
		t.Fatalf("SetPhoto() error = %v", err)
	}
	if !strings.HasPrefix(updated.Photo, PhotoURLPrefix) {
		t.Errorf("Photo = %q, want a stored image path", updated.Photo)
	}
	if _, err := svc.SetPhoto(ctx, "u1", "1", []byte("nope")); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("SetPhoto(bad data) error = %v, want %v", err, ErrInvalidImage)
	}
	if _, err := svc.SetPhoto(ctx, "u1", "missing", pngBytes); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("SetPhoto(missing) error = %v, want %v", err, ErrCardNotFound)
	}
}
