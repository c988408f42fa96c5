package dataset

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestNewWriterCreatesLayout(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dataset")
	_, err := NewWriter(out, 0)
	test.That(t, err, test.ShouldBeNil)
	for _, sub := range []string{"bboxes", "center", "scale", "label", "frames"} {
		info, err := os.Stat(filepath.Join(out, sub))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.IsDir(), test.ShouldBeTrue)
	}
}

func TestWriteSample(t *testing.T) {
	out := t.TempDir()
	w, err := NewWriter(out, 0)
	test.That(t, err, test.ShouldBeNil)

	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.NRGBA{R: 128, G: 64, B: 32, A: 255})
		}
	}
	keypoints := []r2.Point{{X: 100, Y: 200}, {X: 300.5, Y: 400.25}}
	center := r2.Point{X: 320, Y: 240}
	test.That(t, w.WriteSample(7, img, keypoints, center, 1.5), test.ShouldBeNil)

	b, err := os.ReadFile(filepath.Join(out, "bboxes", "frame_00007.txt"))
	test.That(t, err, test.ShouldBeNil)
	fields := strings.Split(strings.TrimSpace(string(b)), "\t")
	test.That(t, len(fields), test.ShouldEqual, 5)
	test.That(t, fields[0], test.ShouldEqual, "0")
	test.That(t, fields[1], test.ShouldEqual, "0.5")   // 320/640
	test.That(t, fields[2], test.ShouldEqual, "0.5")   // 240/480
	test.That(t, fields[3], test.ShouldEqual, "0.46875") // 1.5*200/640

	b, err = os.ReadFile(filepath.Join(out, "center", "center_00007.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(strings.Fields(string(b))), test.ShouldEqual, 2)

	b, err = os.ReadFile(filepath.Join(out, "scale", "scales_00007.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(strings.TrimSpace(string(b)), "\n"), test.ShouldEqual, 0)

	b, err = os.ReadFile(filepath.Join(out, "label", "label_00007.txt"))
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)
	test.That(t, len(strings.Fields(lines[0])), test.ShouldEqual, 2)

	info, err := os.Stat(filepath.Join(out, "frames", "frame_00007.jpg"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
}

func TestWriteSampleClassID(t *testing.T) {
	out := t.TempDir()
	w, err := NewWriter(out, 4)
	test.That(t, err, test.ShouldBeNil)
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	test.That(t, w.WriteSample(0, img, nil, r2.Point{X: 32, Y: 24}, 0.1), test.ShouldBeNil)
	b, err := os.ReadFile(filepath.Join(out, "bboxes", "frame_00000.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.HasPrefix(string(b), "4\t"), test.ShouldBeTrue)
}
