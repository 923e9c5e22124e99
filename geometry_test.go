package ppeprep

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPixel(t *testing.T) {
	tests := []struct {
		name string
		box  NormalizedBox
		size ImageSize
		want PixelBox
	}{
		{"full image", NormalizedBox{CX: 0.5, CY: 0.5, W: 1, H: 1}, ImageSize{640, 480},
			PixelBox{0, 0, 640, 480}},
		{"centered", NormalizedBox{CX: 0.5, CY: 0.5, W: 0.4, H: 0.4}, ImageSize{100, 100},
			PixelBox{30, 30, 70, 70}},
		{"top left quarter", NormalizedBox{CX: 0.25, CY: 0.25, W: 0.5, H: 0.5}, ImageSize{8, 4},
			PixelBox{0, 0, 4, 2}},
		{"out of range", NormalizedBox{CX: 1.5, CY: 0.5, W: 0.5, H: 0.5}, ImageSize{10, 10},
			PixelBox{12.5, 2.5, 17.5, 7.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPixel(tt.box, tt.size)
			assert.InDelta(t, tt.want.XMin, got.XMin, 1e-9)
			assert.InDelta(t, tt.want.YMin, got.YMin, 1e-9)
			assert.InDelta(t, tt.want.XMax, got.XMax, 1e-9)
			assert.InDelta(t, tt.want.YMax, got.YMax, 1e-9)
		})
	}
}

func TestToNormalizedRoundTrip(t *testing.T) {
	size := ImageSize{Width: 1920, Height: 1080}
	boxes := []NormalizedBox{
		{CX: 0.5, CY: 0.5, W: 1, H: 1},
		{CX: 0.123456, CY: 0.654321, W: 0.1, H: 0.2},
		{CX: 0.9, CY: 0.05, W: 0.01, H: 0.02},
	}

	for _, b := range boxes {
		got, err := ToNormalized(ToPixel(b, size), size)
		require.NoError(t, err)
		assert.InDelta(t, b.CX, got.CX, 1e-12)
		assert.InDelta(t, b.CY, got.CY, 1e-12)
		assert.InDelta(t, b.W, got.W, 1e-12)
		assert.InDelta(t, b.H, got.H, 1e-12)
		assert.Equal(t, 0, got.ClassID)
	}
}

func TestToNormalizedZeroSize(t *testing.T) {
	for _, size := range []ImageSize{{0, 10}, {10, 0}, {0, 0}} {
		_, err := ToNormalized(PixelBox{0, 0, 1, 1}, size)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrZeroSize), "%v", err)
	}
}

func TestClipToImage(t *testing.T) {
	size := ImageSize{Width: 100, Height: 50}
	tests := []struct {
		name  string
		box   PixelBox
		want  PixelBox
		empty bool
	}{
		{"inside", PixelBox{10, 10, 20, 20}, PixelBox{10, 10, 20, 20}, false},
		{"overlapping", PixelBox{-10, -5, 120, 60}, PixelBox{0, 0, 100, 50}, false},
		{"right of image", PixelBox{110, 10, 130, 20}, PixelBox{110, 10, 100, 20}, true},
		{"left of image", PixelBox{-30, 10, -10, 20}, PixelBox{0, 10, -10, 20}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClipToImage(tt.box, size)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.empty, got.Empty())
			// Clipping is idempotent.
			assert.Equal(t, got, ClipToImage(got, size))
		})
	}
}

func TestClampToImage(t *testing.T) {
	got := clampToImage(PixelBox{-30, 10, -10, 20}, ImageSize{Width: 100, Height: 50})
	assert.Equal(t, PixelBox{0, 10, 0, 20}, got)
	assert.True(t, got.Empty())
}

func TestPixelBox(t *testing.T) {
	b := PixelBox{1.9, 2.5, 10.99, 7.1}
	assert.InDelta(t, 9.09, b.Width(), 1e-9)
	assert.InDelta(t, 4.6, b.Height(), 1e-9)
	assert.Equal(t, PixelBox{1, 2, 10, 7}, b.Truncate())
	assert.Equal(t, PixelBox{0.9, 1.5, 9.99, 6.1}.Rect(), b.Translate(1, 1).Rect())

	assert.False(t, b.Empty())
	assert.True(t, PixelBox{1, 1, 1, 5}.Empty())
	assert.True(t, PixelBox{1, 1, 5, 0}.Empty())
	assert.True(t, PixelBox{math.NaN(), 0, 5, 5}.Empty())
	assert.True(t, PixelBox{0, 0, math.Inf(1), 5}.Empty())
}
