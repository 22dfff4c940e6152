package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"bookreview-backend/internal/config"
)

var (
	ErrImageTooLarge     = errors.New("image too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrNotAnImage        = errors.New("not an image")
)

// PreparedImage is the payload actually written to the blob store.
type PreparedImage struct {
	Data        []byte
	ContentType string
	Extension   string
}

type ImageProcessor struct {
	MaxSize      int64 // bytes
	Optimize     bool
	MaxDimension int
	Quality      int
}

func NewImageProcessor(cfg config.ImageConfig) *ImageProcessor {
	return &ImageProcessor{
		MaxSize:      cfg.MaxBytes,
		Optimize:     cfg.Optimize,
		MaxDimension: cfg.MaxDimension,
		Quality:      cfg.Quality,
	}
}

// ValidateImage accepts JPEG/PNG up to MaxSize and returns the detected format.
func (p *ImageProcessor) ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotAnImage
	}
	if p.MaxSize > 0 && int64(len(data)) > p.MaxSize {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrImageTooLarge, p.MaxSize)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	switch format {
	case "jpeg", "png":
		return format, nil
	default:
		return "", fmt.Errorf("%w: %s (only jpeg/png)", ErrUnsupportedFormat, format)
	}
}

// Prepare validates the upload and, when optimisation is on, re-encodes it as a
// bounded JPEG.
func (p *ImageProcessor) Prepare(data []byte) (*PreparedImage, error) {
	format, err := p.ValidateImage(data)
	if err != nil {
		return nil, err
	}

	if !p.Optimize {
		return &PreparedImage{
			Data:        data,
			ContentType: "image/" + format,
			Extension:   extensionFor(format),
		}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	if p.MaxDimension > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > p.MaxDimension || bounds.Dy() > p.MaxDimension {
			img = imaging.Fit(img, p.MaxDimension, p.MaxDimension, imaging.Lanczos)
		}
	}

	quality := p.Quality
	if quality <= 0 {
		quality = 85
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("cannot encode image: %w", err)
	}

	return &PreparedImage{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Extension:   ".jpg",
	}, nil
}

func extensionFor(format string) string {
	if format == "png" {
		return ".png"
	}
	return ".jpg"
}
