package thumbnails

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownscale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	dst := Downscale(src, ThumbWidth)

	assert.Equal(t, ThumbWidth, dst.Bounds().Dx())
	assert.Equal(t, 180, dst.Bounds().Dy())
}

func TestDownscaleKeepsSmallImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 300, 200))
	dst := Downscale(src, ThumbWidth)

	// No upscaling.
	assert.Same(t, image.Image(src), dst)
	assert.Equal(t, 300, dst.Bounds().Dx())
}

func TestDownscaleOddAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 333))
	dst := Downscale(src, ThumbWidth)

	assert.Equal(t, ThumbWidth, dst.Bounds().Dx())
	assert.Equal(t, 106, dst.Bounds().Dy())
}
