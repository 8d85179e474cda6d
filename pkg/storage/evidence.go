package stores

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// EvidencePrefix is the folder evidence images are written under.
const EvidencePrefix = "images"

// Evidence uploads alert images. Uploads are permanent and never deduplicated.
type Evidence struct {
	store Store
}

func NewEvidence(store Store) *Evidence {
	return &Evidence{store: store}
}

// Upload writes data to images/{filename} and returns its public URL.
func (e *Evidence) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("upload %s: empty image", filename)
	}
	key := path.Join(EvidencePrefix, filename)
	if err := e.store.Write(ctx, key, bytes.NewReader(data), int64(len(data)), http.DetectContentType(data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return e.store.PublicURL(key), nil
}

// EvidenceFilename builds "{kind}_{videoID}_{hex}.png"; a zero videoID is rendered as "live".
func EvidenceFilename(kind string, videoID uint) string {
	id := "live"
	if videoID != 0 {
		id = fmt.Sprint(videoID)
	}
	return fmt.Sprintf("%s_%s_%s.png", kind, id, strings.ReplaceAll(uuid.NewString(), "-", ""))
}
