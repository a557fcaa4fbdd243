package resize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedFormat is returned for inputs that are not PNG, JPEG,
	// GIF or WebP.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrImageTooLarge is returned when the header declares more pixels
	// than the Resizer allows. The pixel data is never decoded.
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// DefaultMaxPixels bounds width*height when no limit is configured. At four
// bytes per decoded pixel it keeps one source image under about 160 MB.
const DefaultMaxPixels int64 = 40_000_000

// Supported content types.
const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

const encodeQuality = 90

// SupportedContentTypes lists the formats Resize accepts.
func SupportedContentTypes() []string {
	return []string{ContentTypePNG, ContentTypeJPEG, ContentTypeGIF, ContentTypeWebP}
}

// IsSupported reports whether contentType is one of SupportedContentTypes.
func IsSupported(contentType string) bool {
	for _, ct := range SupportedContentTypes() {
		if ct == contentType {
			return true
		}
	}
	return false
}

// Resizer halves images.
type Resizer struct {
	maxPixels int64
}

// Option configures a Resizer.
type Option func(*Resizer)

// WithMaxPixels caps width*height of accepted inputs. Values <= 0 keep
// DefaultMaxPixels.
func WithMaxPixels(n int64) Option {
	return func(r *Resizer) {
		if n > 0 {
			r.maxPixels = n
		}
	}
}

// NewResizer creates a Resizer.
func NewResizer(opts ...Option) *Resizer {
	r := &Resizer{maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resize decodes src, scales it to half size with a bicubic filter and
// encodes it in the same format. It returns the encoded bytes and their
// content type. Animated GIFs keep only their first frame.
func (r *Resizer) Resize(ctx context.Context, src []byte) ([]byte, string, error) {
	contentType := mimetype.Detect(src).String()
	if !IsSupported(contentType) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}

	if err := r.checkDimensions(contentType, src); err != nil {
		return nil, "", err
	}

	img, err := decode(contentType, src)
	if err != nil {
		return nil, "", fmt.Errorf("error decoding %s: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	w, h := HalfSize(img.Bounds().Dx(), img.Bounds().Dy())
	resized := imaging.Resize(img, w, h, imaging.CatmullRom)
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	out, err := encode(contentType, resized)
	if err != nil {
		return nil, "", fmt.Errorf("error encoding %s: %w", contentType, err)
	}
	return out, contentType, nil
}

// HalfSize returns half of each dimension, never less than one pixel.
func HalfSize(width, height int) (int, int) {
	return max(width/2, 1), max(height/2, 1)
}

// checkDimensions reads only the image header so oversized inputs are
// rejected before any pixel buffer is allocated.
func (r *Resizer) checkDimensions(contentType string, src []byte) error {
	cfg, err := decodeConfig(contentType, src)
	if err != nil {
		return fmt.Errorf("error reading %s header: %w", contentType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrUnsupportedFormat, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > r.maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, r.maxPixels)
	}
	return nil
}

func decodeConfig(contentType string, src []byte) (image.Config, error) {
	rd := bytes.NewReader(src)
	switch contentType {
	case ContentTypePNG:
		return png.DecodeConfig(rd)
	case ContentTypeJPEG:
		return jpeg.DecodeConfig(rd)
	case ContentTypeGIF:
		return gif.DecodeConfig(rd)
	case ContentTypeWebP:
		return webp.DecodeConfig(rd)
	default:
		return image.Config{}, ErrUnsupportedFormat
	}
}

func decode(contentType string, src []byte) (image.Image, error) {
	r := bytes.NewReader(src)
	switch contentType {
	case ContentTypePNG:
		return png.Decode(r)
	case ContentTypeJPEG:
		return jpeg.Decode(r)
	case ContentTypeGIF:
		return gif.Decode(r)
	case ContentTypeWebP:
		return webp.Decode(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func encode(contentType string, img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	switch contentType {
	case ContentTypePNG:
		err = png.Encode(buf, img)
	case ContentTypeJPEG:
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: encodeQuality})
	case ContentTypeGIF:
		err = gif.Encode(buf, img, nil)
	case ContentTypeWebP:
		err = webp.Encode(buf, img, &webp.Options{Quality: encodeQuality})
	default:
		err = ErrUnsupportedFormat
	}
	return buf.Bytes(), err
}
