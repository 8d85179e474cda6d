package pipeline

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"SafeStack/pkg/errors"
	"SafeStack/pkg/logger"

	"go.uber.org/zap"
)

// DownloadedVideo is a temp file owned by one pipeline run.
type DownloadedVideo struct {
	Path     string
	MimeType string
	Size     int64
}

// Remove deletes the temp file. It is safe to call more than once.
func (v *DownloadedVideo) Remove() {
	if v == nil || v.Path == "" {
		return
	}
	if err := os.Remove(v.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn("remove temp video failed", zap.String("path", v.Path), zap.Error(err))
	}
}

// ExtensionFor maps a response Content-Type to a file extension, defaulting to ".mp4".
func ExtensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "quicktime"), strings.Contains(ct, "mov"):
		return ".mov"
	case strings.Contains(ct, "avi"):
		return ".avi"
	}
	return ".mp4"
}

// MimeForExtension is the MIME type sent to the model for a downloaded file.
func MimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	}
	return "video/mp4"
}

// HTTPDownloader downloads videos with redirects followed.
type HTTPDownloader struct {
	client   *http.Client
	maxBytes int64
	tempDir  string
}

// NewHTTPDownloader builds a downloader. maxBytes<=0 disables the size cap.
func NewHTTPDownloader(timeout time.Duration, maxBytes int64) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPDownloader{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) (*DownloadedVideo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeDownload, "invalid video url")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInternal, "download video")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithCodef(errors.CodeDownload, "download video: unexpected status %d", resp.StatusCode)
	}

	ext := ExtensionFor(resp.Header.Get("Content-Type"))
	f, err := os.CreateTemp(d.tempDir, "safestack-*"+ext)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInternal, "create temp video")
	}
	video := &DownloadedVideo{Path: f.Name(), MimeType: MimeForExtension(ext)}

	var body io.Reader = resp.Body
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		video.Remove()
		return nil, errors.WrapCode(err, errors.CodeInternal, "write temp video")
	}
	if d.maxBytes > 0 && n > d.maxBytes {
		video.Remove()
		return nil, errors.WithCodef(errors.CodeDownload, "download video: larger than %d bytes", d.maxBytes)
	}
	video.Size = n
	return video, nil
}
