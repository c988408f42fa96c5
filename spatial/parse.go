package spatial

import (
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// poseLineFields is the token count of a camera.poses line:
// timestamp tx ty tz qx qy qz qw.
const poseLineFields = 8

// PoseFromLine parses one line of a camera.poses file. The file stores the
// quaternion scalar last (qx qy qz qw); it is reordered to (w, x, y, z)
// here, before any rotation math sees it.
func PoseFromLine(line string) (Pose, error) {
	fields := strings.Fields(line)
	if len(fields) != poseLineFields {
		return Pose{}, errors.Errorf("malformed pose line: expected %d fields, got %d in %q",
			poseLineFields, len(fields), line)
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Pose{}, errors.Wrapf(err, "malformed pose line %q", line)
		}
		vals[i] = v
	}
	t := r3.Vector{X: vals[1], Y: vals[2], Z: vals[3]}
	q := quat.Number{Real: vals[7], Imag: vals[4], Jmag: vals[5], Kmag: vals[6]}
	return NewPose(t, q), nil
}
