package annotate

import (
	"image"

	"github.com/fogleman/gg"
)

const keypointRadius = 5

// RenderOverlay draws a label onto a copy of the frame: filled dots at the
// keypoints and the square crop box of side scale*200 around the center.
func RenderOverlay(img image.Image, label Label) image.Image {
	dc := gg.NewContextForImage(img)

	dc.SetRGB255(0, 0, 255)
	for _, kp := range label.Keypoints {
		dc.DrawCircle(kp.X, kp.Y, keypointRadius)
		dc.Fill()
	}

	side := label.Scale * 200
	dc.SetRGB255(0, 255, 0)
	dc.SetLineWidth(2)
	dc.DrawRectangle(label.Center.X-side/2, label.Center.Y-side/2, side, side)
	dc.Stroke()

	return dc.Image()
}

// SaveOverlayPNG renders a label overlay and writes it as a PNG.
func SaveOverlayPNG(path string, img image.Image, label Label) error {
	return gg.SavePNG(path, RenderOverlay(img, label))
}
