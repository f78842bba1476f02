package texture

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestRgbaFromImage_GrayUsesR8Unorm(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	pb := rgbaFromImage(img)
	assert.Equal(t, vk.FormatR8Unorm, pb.format)
	assert.EqualValues(t, 4, pb.width)
	assert.Len(t, pb.pixels, 16)
}

func TestRgbaFromImage_RGBGetsOpaqueAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
		}
	}
	pb := rgbaFromImage(img)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, pb.format)
	for i := 3; i < len(pb.pixels); i += 4 {
		assert.EqualValues(t, 0xFF, pb.pixels[i], "RGB-only source must be expanded with alpha=0xFF")
	}
}

func TestRgbeToFloat_ZeroExponentIsBlack(t *testing.T) {
	r, g, b := rgbeToFloat(0, 0, 0, 0)
	assert.Zero(t, r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestBytesPerPixelFor(t *testing.T) {
	assert.EqualValues(t, 1, bytesPerPixelFor(vk.FormatR8Unorm))
	assert.EqualValues(t, 4, bytesPerPixelFor(vk.FormatR8g8b8a8Unorm))
	assert.EqualValues(t, 16, bytesPerPixelFor(vk.FormatR32g32b32a32Sfloat))
}
