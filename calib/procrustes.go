package calib

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mehdi-benallegue/RapidPoseLabels/spatial"
)

// Alignment is a similarity transform dst ≈ Scale·Rotation·src + Translation
// found by Procrustes registration, with the mean squared correspondence
// error after alignment.
type Alignment struct {
	Rotation    *mat.Dense
	Translation r3.Vector
	Scale       float64
	Disparity   float64
}

// Matrix composes the alignment into a 4x4 transform, folding the scale into
// the rotation block.
func (a *Alignment) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, a.Scale*a.Rotation.At(i, j))
		}
	}
	m.Set(0, 3, a.Translation.X)
	m.Set(1, 3, a.Translation.Y)
	m.Set(2, 3, a.Translation.Z)
	m.Set(3, 3, 1)
	return m
}

// Procrustes registers src onto dst, minimizing the sum of squared
// correspondence distances over similarity transforms. Aligning a point set
// to itself yields the identity rotation, zero translation, unit scale and
// zero disparity.
func Procrustes(src, dst []r3.Vector) (*Alignment, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("point sets differ in size: %d vs %d", len(src), len(dst))
	}
	if len(src) < 3 {
		return nil, errors.Errorf("need at least 3 correspondences, got %d", len(src))
	}
	n := float64(len(src))
	var muSrc, muDst r3.Vector
	for i := range src {
		muSrc = muSrc.Add(src[i])
		muDst = muDst.Add(dst[i])
	}
	muSrc = muSrc.Mul(1 / n)
	muDst = muDst.Mul(1 / n)

	// covariance of the centered sets, and the source variance for scale
	cov := mat.NewDense(3, 3, nil)
	varSrc := 0.0
	for i := range src {
		s := src[i].Sub(muSrc)
		d := dst[i].Sub(muDst)
		varSrc += s.Norm2()
		sv := []float64{s.X, s.Y, s.Z}
		dv := []float64{d.X, d.Y, d.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				cov.Set(r, c, cov.At(r, c)+dv[r]*sv[c]/n)
			}
		}
	}
	varSrc /= n
	if varSrc == 0 {
		return nil, errors.New("degenerate source point set (zero variance)")
	}

	var svd mat.SVD
	if ok := svd.Factorize(cov, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize covariance matrix")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)

	// reflection guard: force a proper rotation
	d := 1.0
	if mat.Det(&u)*mat.Det(&v) < 0 {
		d = -1.0
	}
	sign := mat.NewDiagDense(3, []float64{1, 1, d})
	rot := mat.NewDense(3, 3, nil)
	rot.Product(&u, sign, v.T())

	scale := (vals[0] + vals[1] + d*vals[2]) / varSrc
	rotMuSrc := spatial.TransformPoints(embedRotation(rot), []r3.Vector{muSrc})[0]
	trans := muDst.Sub(rotMuSrc.Mul(scale))

	aligned := &Alignment{Rotation: rot, Translation: trans, Scale: scale}
	disparity := 0.0
	full := aligned.Matrix()
	for i, s := range spatial.TransformPoints(full, src) {
		disparity += s.Sub(dst[i]).Norm2()
	}
	aligned.Disparity = disparity / n
	if math.IsNaN(aligned.Disparity) {
		return nil, errors.New("procrustes alignment produced NaN disparity")
	}
	return aligned, nil
}

func embedRotation(rot *mat.Dense) *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, rot.At(i, j))
		}
	}
	m.Set(3, 3, 1)
	return m
}

// VisibilityCursor threads the cumulative count of valid keypoints consumed
// by earlier scenes through a scene-by-scene evaluation. The offset couples
// consecutive scenes, so evaluation must proceed in ascending scene order
// with a single accumulator. Consumed is also the scene's position in every
// packed per-valid-point structure: a scene entered at cursor value c owns
// rows 3c..3(c+v) of the selection matrix and of the masked residual.
type VisibilityCursor struct {
	Consumed int
}

// SceneAlignment pairs a scene index with its ground-truth alignment and the
// packed offset at which the scene's valid points start, the cursor value
// before the scene consumed them.
type SceneAlignment struct {
	Scene     int
	Offset    int
	Alignment *Alignment
}

// AlignSceneToGroundTruth Procrustes-aligns the subset of a hand-authored
// ground-truth model visible in one scene against that scene's raw
// (pre-optimization) back-projections. The returned transform maps the full
// ground-truth model into the scene's camera frame. The cursor advances by
// the number of valid keypoints this scene consumed.
func AlignSceneToGroundTruth(
	groundTruth []r3.Vector,
	obs *ObservationSet,
	scene int,
	cur *VisibilityCursor,
) (*Alignment, error) {
	if len(groundTruth) != obs.NumKeypoints {
		return nil, errors.Errorf("ground truth has %d points, expected %d",
			len(groundTruth), obs.NumKeypoints)
	}
	valid := obs.SceneValid(scene)
	var gtSub, obsSub []r3.Vector
	for k, ok := range valid {
		if !ok {
			continue
		}
		gtSub = append(gtSub, groundTruth[k])
		obsSub = append(obsSub, obs.Points[scene][k])
		cur.Consumed++
	}
	return Procrustes(gtSub, obsSub)
}

// EvaluateScenes runs the ground-truth alignment over every scene, strictly
// in ascending order, threading one visibility cursor through the sequence.
func EvaluateScenes(groundTruth []r3.Vector, obs *ObservationSet) ([]SceneAlignment, error) {
	var cur VisibilityCursor
	out := make([]SceneAlignment, 0, obs.NumScenes)
	for s := 0; s < obs.NumScenes; s++ {
		offset := cur.Consumed
		a, err := AlignSceneToGroundTruth(groundTruth, obs, s, &cur)
		if err != nil {
			return nil, errors.Wrapf(err, "scene %d", s)
		}
		out = append(out, SceneAlignment{Scene: s, Offset: offset, Alignment: a})
	}
	return out, nil
}
