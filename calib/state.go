package calib

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mehdi-benallegue/RapidPoseLabels/spatial"
)

// State is the flat unknown vector of the joint calibration problem, laid
// out positionally as
//
//	[t_1 .. t_{S-1}] ‖ [q_1 .. q_{S-1}] ‖ [model_0 .. model_{K-1}]
//
// with quaternions stored scalar-first. Scene 0 never appears: its pose is
// pinned to the identity, which removes the 6-DOF rigid gauge ambiguity
// (scale is already fixed by the depth metric). Consumers of a persisted
// "res" array rely on this exact layout.
type State struct {
	NumScenes    int
	NumKeypoints int
	Vector       []float64
}

// NewState returns the solver's initial state: identity poses for scenes
// 1..S-1 and an all-zero object model.
func NewState(numScenes, numKeypoints int) *State {
	s := &State{
		NumScenes:    numScenes,
		NumKeypoints: numKeypoints,
		Vector:       make([]float64, stateLen(numScenes, numKeypoints)),
	}
	for i := 1; i < numScenes; i++ {
		s.Vector[s.quatOffset(i)] = 1 // w component of the identity quaternion
	}
	return s
}

// StateFromVector wraps a persisted solution vector, checking its length
// against the layout.
func StateFromVector(vec []float64, numScenes, numKeypoints int) (*State, error) {
	if len(vec) != stateLen(numScenes, numKeypoints) {
		return nil, errors.Errorf("state vector has length %d, expected %d for %d scenes and %d keypoints",
			len(vec), stateLen(numScenes, numKeypoints), numScenes, numKeypoints)
	}
	return &State{NumScenes: numScenes, NumKeypoints: numKeypoints, Vector: vec}, nil
}

func stateLen(numScenes, numKeypoints int) int {
	return 7*(numScenes-1) + 3*numKeypoints
}

// Len returns the number of free parameters, 7(S-1) + 3K.
func (s *State) Len() int {
	return stateLen(s.NumScenes, s.NumKeypoints)
}

func (s *State) quatOffset(scene int) int {
	return 3*(s.NumScenes-1) + 4*(scene-1)
}

func (s *State) modelOffset() int {
	return 7 * (s.NumScenes - 1)
}

// Pose returns the registration of a scene: the transform taking model
// points, which live in the reference scene's frame, into the scene's own
// reference-camera frame. Scene 0 is
// always the identity and is not read from the vector. The quaternion is
// returned exactly as stored: it is not renormalized during optimization, so
// it may have drifted off unit norm.
func (s *State) Pose(scene int) spatial.Pose {
	if scene == 0 {
		return spatial.NewZeroPose()
	}
	t := r3.Vector{
		X: s.Vector[3*(scene-1)],
		Y: s.Vector[3*(scene-1)+1],
		Z: s.Vector[3*(scene-1)+2],
	}
	qo := s.quatOffset(scene)
	q := quat.Number{
		Real: s.Vector[qo],
		Imag: s.Vector[qo+1],
		Jmag: s.Vector[qo+2],
		Kmag: s.Vector[qo+3],
	}
	return spatial.NewPose(t, q)
}

// Model returns the recovered object model, K points in the reference
// scene's frame.
func (s *State) Model() []r3.Vector {
	off := s.modelOffset()
	model := make([]r3.Vector, s.NumKeypoints)
	for k := 0; k < s.NumKeypoints; k++ {
		model[k] = r3.Vector{
			X: s.Vector[off+3*k],
			Y: s.Vector[off+3*k+1],
			Z: s.Vector[off+3*k+2],
		}
	}
	return model
}

// SceneTransforms composes every scene registration into a 4x4 transform,
// identity first for scene 0.
func (s *State) SceneTransforms() []*mat.Dense {
	out := make([]*mat.Dense, s.NumScenes)
	for i := 0; i < s.NumScenes; i++ {
		out[i] = s.Pose(i).Matrix()
	}
	return out
}
