package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Enhancement parameters, applied in this order
const (
	enhanceContrast   = 20.0 // percent
	enhanceBrightness = 5.0  // percent
	enhanceSharpen    = 0.8  // gaussian sigma
)

var errEmptyImage = errors.New("empty image")

// Enhance boosts contrast, lifts brightness slightly, removes colour and
// sharpens the result. On failure the caller keeps the original image.
func Enhance(img image.Image) (out image.Image, err error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyImage
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("enhancing image: %v", r)
		}
	}()

	enhanced := imaging.AdjustContrast(img, enhanceContrast)
	enhanced = imaging.AdjustBrightness(enhanced, enhanceBrightness)
	enhanced = imaging.Grayscale(enhanced)
	enhanced = imaging.Sharpen(enhanced, enhanceSharpen)
	return enhanced, nil
}

// Thumbnail decodes data and returns a JPEG whose longest side is at most
// maxSide, keeping the aspect ratio. Smaller images are not enlarged.
func Thumbnail(data []byte, maxSide int) ([]byte, error) {
	if maxSide <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size: %d", maxSide)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return EncodeJPEG(imaging.Fit(img, maxSide, maxSide, imaging.Lanczos))
}
