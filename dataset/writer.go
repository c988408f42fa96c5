package dataset

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	viamutils "go.viam.com/utils"
)

// Output subdirectories of a generated training dataset. bboxes holds
// darknet-style normalized boxes, label the 2D keypoint tables, and frames
// the resized RGB images; center and scale hold the cropping labels.
var outputSubdirs = []string{"bboxes", "center", "scale", "label", "frames"}

// Writer persists generated samples in the layout the keypoint-trainer
// tooling expects. Samples are independently indexed, so writes for
// different frames are safe to run concurrently.
type Writer struct {
	outputDir string
	classID   int
}

// NewWriter creates the output directory tree.
func NewWriter(outputDir string, classID int) (*Writer, error) {
	for _, sub := range outputSubdirs {
		if err := os.MkdirAll(filepath.Join(outputDir, sub), 0o755); err != nil {
			return nil, errors.Wrap(err, "cannot create output directory")
		}
	}
	return &Writer{outputDir: outputDir, classID: classID}, nil
}

// WriteSample writes one labeled sample: the YOLO bbox line, the raw center,
// the scale, the keypoint table and the RGB frame. Every file is written
// even if an earlier one failed; failures are combined into one error.
func (w *Writer) WriteSample(index int, img image.Image, keypoints []r2.Point, center r2.Point, scale float64) error {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	bbox := fmt.Sprintf("%d\t%v\t%v\t%v\t%v\n",
		w.classID,
		center.X/float64(width),
		center.Y/float64(height),
		scale*200/float64(width),
		scale*200/float64(height),
	)
	err := os.WriteFile(w.path("bboxes", "frame_%05d.txt", index), []byte(bbox), 0o644)

	centerTxt := fmt.Sprintf("%.18e\n%.18e\n", center.X, center.Y)
	err = multierr.Combine(err,
		os.WriteFile(w.path("center", "center_%05d.txt", index), []byte(centerTxt), 0o644))

	scaleTxt := fmt.Sprintf("%.18e\n", scale)
	err = multierr.Combine(err,
		os.WriteFile(w.path("scale", "scales_%05d.txt", index), []byte(scaleTxt), 0o644))

	label := make([]byte, 0, len(keypoints)*52)
	for _, kp := range keypoints {
		label = append(label, fmt.Sprintf("%.18e %.18e\n", kp.X, kp.Y)...)
	}
	err = multierr.Combine(err,
		os.WriteFile(w.path("label", "label_%05d.txt", index), label, 0o644))

	return multierr.Combine(err, w.writeJPEG(index, img))
}

func (w *Writer) writeJPEG(index int, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(w.path("frames", "frame_%05d.jpg", index))
	if err != nil {
		return errors.Wrap(err, "cannot create frame file")
	}
	defer viamutils.UncheckedErrorFunc(f.Close)
	return jpeg.Encode(f, img, nil)
}

func (w *Writer) path(sub, pattern string, index int) string {
	return filepath.Join(w.outputDir, sub, fmt.Sprintf(pattern, index))
}
