package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"SafeStack/internal/models"
	"SafeStack/internal/pipeline"
	stores "SafeStack/pkg/storage"

	"gorm.io/gorm"
)

const videoPrefix = "videos/"

// objectKey keeps only the base name so "../x.mp4" cannot escape the prefix.
func objectKey(localPath, name string) (string, error) {
	if name == "" {
		name = filepath.Base(localPath)
	}
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return videoPrefix + name, nil
}

// uploadVideo streams the file into store and returns its public URL.
func uploadVideo(ctx context.Context, store stores.Store, localPath, name string) (string, error) {
	key, err := objectKey(localPath, name)
	if err != nil {
		return "", err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", localPath)
	}
	contentType := pipeline.MimeForExtension(filepath.Ext(key))
	if err := store.Write(ctx, key, f, info.Size(), contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return store.PublicURL(key), nil
}

// saveVideo records url so it shows up under GET /videos.
func saveVideo(db *gorm.DB, url string) (*models.Video, error) {
	return models.CreateVideo(db, url)
}
