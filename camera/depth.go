package camera

import (
	"image"
	"image/color"
	_ "image/png" // depth maps are stored as 16-bit grayscale PNGs
	"os"

	"github.com/pkg/errors"
)

// Depth is a raw sensor reading at a pixel. Zero means the sensor had no
// return there; it is the only value treated as missing.
type Depth uint16

// DepthMap is a dense per-pixel depth image.
type DepthMap struct {
	width  int
	height int
	data   []Depth
}

// NewEmptyDepthMap returns an all-zero (all missing) depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width: width, height: height, data: make([]Depth, width*height)}
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// GetDepth returns the raw depth at (x, y). Out-of-bounds reads return 0,
// the missing-depth value.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	if x < 0 || y < 0 || x >= dm.width || y >= dm.height {
		return 0
	}
	return dm.data[y*dm.width+x]
}

// Set writes the depth at (x, y).
func (dm *DepthMap) Set(x, y int, d Depth) {
	if x < 0 || y < 0 || x >= dm.width || y >= dm.height {
		return
	}
	dm.data[y*dm.width+x] = d
}

// NewDepthMapFromFile decodes a depth image from disk. 16-bit grayscale is
// read losslessly; anything else is converted through the gray16 color
// model.
func NewDepthMapFromFile(path string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read depth map")
	}
	defer func() {
		_ = f.Close()
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode depth map %s", path)
	}
	return depthMapFromImage(img), nil
}

func depthMapFromImage(img image.Image) *DepthMap {
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	if g16, ok := img.(*image.Gray16); ok {
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, Depth(g16.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return dm
	}
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			c := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			dm.Set(x, y, Depth(c.Y))
		}
	}
	return dm
}
