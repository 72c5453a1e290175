package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/observability"
	"devshelf/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxUploadSizeMB = 5
	MaxImageWidth          = 1600
	WebPQuality            = 82
	UploadTimeout          = 30 * time.Second

	// Decoded canvas budget, checked from the header before decoding.
	MaxImagePixels = 40_000_000
)

// UploadImageInput is one multipart file as received by the handler.
type UploadImageInput struct {
	UserID   uint
	Filename string
	Content  []byte
}

// UploadedImage describes the stored webp object.
type UploadedImage struct {
	URL    string `json:"url"`
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
}

type UploadService struct {
	uploader           storage.Uploader
	maxUploadSizeBytes int64
	now                func() time.Time
}

// NewUploadService stores images through uploader. maxUploadSizeMB <= 0 uses the default.
func NewUploadService(uploader storage.Uploader, maxUploadSizeMB int) *UploadService {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	return &UploadService{
		uploader:           uploader,
		maxUploadSizeBytes: int64(maxUploadSizeMB) << 20,
		now:                time.Now,
	}
}

// MaxUploadSizeBytes is the largest accepted file.
func (s *UploadService) MaxUploadSizeBytes() int64 {
	return s.maxUploadSizeBytes
}

// UploadImage validates, downsizes and re-encodes an image to webp, then stores it.
func (s *UploadService) UploadImage(ctx context.Context, in UploadImageInput) (out *UploadedImage, err error) {
	defer func() {
		if err != nil {
			observability.Uploads.WithLabelValues(s.uploader.Backend(), observability.StatusLabel(err)).Inc()
		}
	}()

	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes>>20))
	}
	if !isAllowedImageMIME(http.DetectContentType(in.Content)) {
		return nil, models.NewValidationError("Only JPEG, PNG, GIF and WebP images are allowed")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, models.NewValidationError(fmt.Sprintf("Image dimensions too large (max %d megapixels)", MaxImagePixels/1_000_000))
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	resized := resizeToWidth(decoded, MaxImageWidth)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, resized, &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("encode webp: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	key := storage.ImageKey(s.now())
	size := buf.Len()
	url, err := s.uploader.Put(ctx, key, &buf, int64(size), "image/webp")
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "image upload failed",
			slog.String("backend", s.uploader.Backend()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, models.NewInternalError(err)
	}
	observability.Uploads.WithLabelValues(s.uploader.Backend(), observability.StatusOK).Inc()

	b := resized.Bounds()
	middleware.Logger.InfoContext(ctx, "image uploaded",
		slog.String("key", key),
		slog.String("source_format", format),
		slog.Int("bytes_in", len(in.Content)),
		slog.Int("bytes_out", size),
	)
	return &UploadedImage{URL: url, Key: key, Width: b.Dx(), Height: b.Dy(), Size: size}, nil
}

// resizeToWidth scales src down to maxWidth keeping its aspect ratio.
func resizeToWidth(src image.Image, maxWidth int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxWidth || w <= 0 || h <= 0 {
		return src
	}
	newH := int(float64(h) * float64(maxWidth) / float64(w))
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func isAllowedImageMIME(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
