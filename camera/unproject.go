package camera

import (
	"github.com/golang/geo/r3"

	"github.com/mehdi-benallegue/RapidPoseLabels/spatial"
)

// Pick is one hand-identified 2D keypoint slot on a scene's reference frame.
// An unpicked slot carries Picked == false instead of a magic coordinate.
type Pick struct {
	U      float64
	V      float64
	Picked bool
}

// UnprojectPicks back-projects each picked keypoint slot through the pinhole
// model using the depth at that pixel. A slot is invalid when it was never
// picked or when the depth there is exactly zero; the returned points slice
// holds a zero vector at invalid slots and the validity slice flags which
// entries are real. Negative or non-finite depth values are not
// special-cased and propagate as-is.
func UnprojectPicks(picks []Pick, dm *DepthMap, params *PinholeCameraIntrinsics, depthScale float64) ([]r3.Vector, []bool) {
	points := make([]r3.Vector, len(picks))
	valid := make([]bool, len(picks))
	for i, p := range picks {
		if !p.Picked {
			continue
		}
		d := dm.GetDepth(int(p.U), int(p.V))
		if d == 0 {
			continue
		}
		z := float64(d) / depthScale
		x, y, z := params.PixelToPoint(p.U, p.V, z)
		points[i] = r3.Vector{X: x, Y: y, Z: z}
		valid[i] = true
	}
	return points, valid
}

// UnprojectPicksInFrame back-projects picks and then moves the valid points
// out of the picked frame's camera frame into the trajectory frame its pose
// is expressed in, R(q)·p + t. Scene registrations and the recovered model
// live in that trajectory frame, so observations must too. Invalid slots
// keep their zero placeholder untouched.
func UnprojectPicksInFrame(
	picks []Pick,
	dm *DepthMap,
	params *PinholeCameraIntrinsics,
	depthScale float64,
	framePose spatial.Pose,
) ([]r3.Vector, []bool) {
	points, valid := UnprojectPicks(picks, dm, params, depthScale)
	for i, ok := range valid {
		if ok {
			points[i] = framePose.ApplyToPoint(points[i])
		}
	}
	return points, valid
}
