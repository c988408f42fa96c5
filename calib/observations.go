// Package calib jointly estimates a shared sparse 3D keypoint model of a
// rigid object and the relative rigid pose of every capture scene, from
// partially visible back-projected keypoint picks. The residual is masked by
// a selection matrix so that unobserved keypoints contribute nothing to the
// cost, scene 0 is pinned to the identity to fix the rigid gauge, and the
// solved state can be persisted to and restored from a NumPy npz archive.
package calib

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ObservationSet holds the raw per-scene 3D back-projections of the picked
// keypoints, with a validity flag per (scene, keypoint) slot. Points at
// invalid slots are zero; the flattening is scene-major, keypoint-minor.
type ObservationSet struct {
	NumScenes    int
	NumKeypoints int
	// Points[s][k] is keypoint k back-projected in scene s's camera frame.
	Points [][]r3.Vector
	// Valid is the flattened validity mask, length NumScenes*NumKeypoints.
	Valid []bool
}

// NewObservationSet assembles the per-scene unprojection results into one
// observation set. Every scene must carry the same number of keypoint slots.
func NewObservationSet(points [][]r3.Vector, valid [][]bool) (*ObservationSet, error) {
	if len(points) == 0 {
		return nil, errors.New("no scene observations")
	}
	numKeypoints := len(points[0])
	obs := &ObservationSet{
		NumScenes:    len(points),
		NumKeypoints: numKeypoints,
		Points:       points,
		Valid:        make([]bool, 0, len(points)*numKeypoints),
	}
	for s, scenePoints := range points {
		if len(scenePoints) != numKeypoints || len(valid[s]) != numKeypoints {
			return nil, errors.Errorf("scene %d has %d keypoint slots, expected %d",
				s, len(scenePoints), numKeypoints)
		}
		obs.Valid = append(obs.Valid, valid[s]...)
	}
	return obs, nil
}

// NumValid counts the observed (scene, keypoint) slots.
func (obs *ObservationSet) NumValid() int {
	n := 0
	for _, v := range obs.Valid {
		if v {
			n++
		}
	}
	return n
}

// SceneValid returns the validity flags of one scene.
func (obs *ObservationSet) SceneValid(scene int) []bool {
	return obs.Valid[scene*obs.NumKeypoints : (scene+1)*obs.NumKeypoints]
}

// RefArray flattens the observations into the scenes x 3 x keypoints layout
// persisted as the "ref" archive entry.
func (obs *ObservationSet) RefArray() []float64 {
	out := make([]float64, 0, obs.NumScenes*3*obs.NumKeypoints)
	for s := 0; s < obs.NumScenes; s++ {
		for axis := 0; axis < 3; axis++ {
			for k := 0; k < obs.NumKeypoints; k++ {
				pt := obs.Points[s][k]
				switch axis {
				case 0:
					out = append(out, pt.X)
				case 1:
					out = append(out, pt.Y)
				default:
					out = append(out, pt.Z)
				}
			}
		}
	}
	return out
}

// ObservationSetFromRef rebuilds an observation set from a persisted "ref"
// array plus the validity mask.
func ObservationSetFromRef(ref []float64, numScenes, numKeypoints int, valid []bool) (*ObservationSet, error) {
	if len(ref) != numScenes*3*numKeypoints {
		return nil, errors.Errorf("ref array has %d values, expected %d*3*%d",
			len(ref), numScenes, numKeypoints)
	}
	if len(valid) != numScenes*numKeypoints {
		return nil, errors.Errorf("validity mask has %d entries, expected %d",
			len(valid), numScenes*numKeypoints)
	}
	points := make([][]r3.Vector, numScenes)
	for s := 0; s < numScenes; s++ {
		points[s] = make([]r3.Vector, numKeypoints)
		base := s * 3 * numKeypoints
		for k := 0; k < numKeypoints; k++ {
			points[s][k] = r3.Vector{
				X: ref[base+k],
				Y: ref[base+numKeypoints+k],
				Z: ref[base+2*numKeypoints+k],
			}
		}
	}
	return &ObservationSet{
		NumScenes:    numScenes,
		NumKeypoints: numKeypoints,
		Points:       points,
		Valid:        valid,
	}, nil
}
