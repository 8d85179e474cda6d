package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrFrameRead is returned when no frame can be decoded at the requested position,
// usually because it lies beyond the end of the stream.
var ErrFrameRead = errors.New("could not read frame from video")

// JPEGQuality is the re-encode quality of extracted frames.
const JPEGQuality = 90

// Extractor produces a single still from a local video file.
type Extractor interface {
	ExtractFrame(ctx context.Context, videoPath string, seconds float64) ([]byte, error)
}

// FFmpegExtractor shells out to ffmpeg and returns JPEG bytes.
type FFmpegExtractor struct {
	ffmpegPath string
	logger     *logrus.Logger
}

// NewFFmpegExtractor finds ffmpeg on PATH unless ffmpegPath is given.
func NewFFmpegExtractor(ffmpegPath string, logger *logrus.Logger) (*FFmpegExtractor, error) {
	if ffmpegPath == "" {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
		ffmpegPath = p
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FFmpegExtractor{ffmpegPath: ffmpegPath, logger: logger}, nil
}

func (fe *FFmpegExtractor) ExtractFrame(ctx context.Context, videoPath string, seconds float64) ([]byte, error) {
	if seconds < 0 {
		seconds = 0
	}
	// -ss 放在 -i 前面做快速定位，只解一帧输出到 stdout
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", seconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, fe.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	fe.logger.WithFields(logrus.Fields{"video": videoPath, "seconds": seconds}).Debug("extracting frame")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w at %.2fs: ffmpeg: %v: %s", ErrFrameRead, seconds, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w at %.2fs", ErrFrameRead, seconds)
	}

	img, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w at %.2fs: decode: %v", ErrFrameRead, seconds, err)
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
