package annotate

import (
	"math"

	"github.com/golang/geo/r2"
)

// BoxPolicy derives a crop center and scale from the projected keypoints.
// The two policies differ in sizing and clamping and are deliberately kept
// as distinct strategies; which one is authoritative is an open product
// question.
type BoxPolicy interface {
	Name() string
	BoundingBox(keypoints []r2.Point, width, height int, bboxScale float64) (r2.Point, float64)
}

// MinMaxBoxPolicy sizes the box from the axis-aligned min/max spread of the
// projected keypoints. The spread is clamped per axis to
// [0, width-1] x [0, height-1] before the center is recomputed from the
// clamped bounds; scale is the larger clamped side times bboxScale over 200.
type MinMaxBoxPolicy struct{}

// Name implements BoxPolicy.
func (MinMaxBoxPolicy) Name() string { return "minmax" }

// BoundingBox implements BoxPolicy.
func (MinMaxBoxPolicy) BoundingBox(keypoints []r2.Point, width, height int, bboxScale float64) (r2.Point, float64) {
	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	for _, kp := range keypoints {
		xmin = math.Min(xmin, kp.X)
		ymin = math.Min(ymin, kp.Y)
		xmax = math.Max(xmax, kp.X)
		ymax = math.Max(ymax, kp.Y)
	}
	if xmin < 0 {
		xmin = 0
	}
	if ymin < 0 {
		ymin = 0
	}
	if xmax >= float64(width-1) {
		xmax = float64(width - 1)
	}
	if ymax >= float64(height-1) {
		ymax = float64(height - 1)
	}
	center := r2.Point{X: (xmax + xmin) / 2, Y: (ymax + ymin) / 2}
	scale := math.Max(xmax-xmin, ymax-ymin) * bboxScale / 200
	return center, scale
}

// PairwiseBoxPolicy sizes a square box from the maximum pairwise keypoint
// distance times bboxScale, centered on the keypoint mean. The side is
// clamped with a 1px floor and the image size as ceiling per axis; scale is
// the smaller clamped side over 200.
type PairwiseBoxPolicy struct{}

// Name implements BoxPolicy.
func (PairwiseBoxPolicy) Name() string { return "pairwise" }

// BoundingBox implements BoxPolicy.
func (PairwiseBoxPolicy) BoundingBox(keypoints []r2.Point, width, height int, bboxScale float64) (r2.Point, float64) {
	var center r2.Point
	for _, kp := range keypoints {
		center = center.Add(kp)
	}
	center = center.Mul(1 / float64(len(keypoints)))

	maxDist := 0.0
	for i := 0; i < len(keypoints); i++ {
		for j := i + 1; j < len(keypoints); j++ {
			maxDist = math.Max(maxDist, keypoints[i].Sub(keypoints[j]).Norm())
		}
	}
	side := maxDist * bboxScale
	boxW := math.Min(math.Max(side, 1), float64(width))
	boxH := math.Min(math.Max(side, 1), float64(height))
	return center, math.Min(boxW, boxH) / 200
}

// PolicyByName resolves a policy from its CLI name.
func PolicyByName(name string) (BoxPolicy, bool) {
	switch name {
	case MinMaxBoxPolicy{}.Name():
		return MinMaxBoxPolicy{}, true
	case PairwiseBoxPolicy{}.Name():
		return PairwiseBoxPolicy{}, true
	}
	return nil, false
}
