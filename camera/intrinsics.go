// Package camera holds the pinhole camera model: intrinsics parsed from a
// dataset's camera.txt, depth maps, and back-projection of picked 2D
// keypoints into the camera frame.
package camera

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// intrinsicsFields is the token count of a camera.txt line: fx fy cx cy.
const intrinsicsFields = 4

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective
// projection of a 3D scene to the 2D plane, with no distortion model.
type PinholeCameraIntrinsics struct {
	Width  int
	Height int
	Fx     float64
	Fy     float64
	Ppx    float64
	Ppy    float64
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return errors.New("intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return errors.Errorf("invalid size (%#v, %#v)", params.Width, params.Height)
	}
	if params.Fx <= 0 {
		return errors.Errorf("invalid focal length Fx = %#v", params.Fx)
	}
	if params.Fy <= 0 {
		return errors.Errorf("invalid focal length Fy = %#v", params.Fy)
	}
	return nil
}

// NewIntrinsicsFromFile reads a camera.txt file, a single whitespace
// separated line "fx fy cx cy". The image size is not part of the file and
// is supplied by the caller. A wrong token count is a fatal parse error.
func NewIntrinsicsFromFile(path string, width, height int) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read camera intrinsics")
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	fields := strings.Fields(lines[0])
	if len(fields) != intrinsicsFields {
		return nil, errors.Errorf("malformed intrinsics in %s: expected %d fields, got %d",
			path, intrinsicsFields, len(fields))
	}
	vals := make([]float64, intrinsicsFields)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed intrinsics in %s", path)
		}
		vals[i] = v
	}
	params := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     vals[0],
		Fy:     vals[1],
		Ppx:    vals[2],
		Ppy:    vals[3],
	}
	return params, params.CheckValid()
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera
// frame. z is in the same metric unit the depth map was scaled to.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point in the camera frame to a (sub-pixel)
// image plane position. A point at z == 0 projects to (-1, -1) so that
// bounds clamping downstream discards it.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy
	}
	return -1.0, -1.0
}
