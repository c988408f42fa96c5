package calib

import (
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestArchiveRoundTrip(t *testing.T) {
	obs := twoSceneObservations(t)
	sel := BuildSelectionMatrix(obs.Valid)
	state := NewState(obs.NumScenes, obs.NumKeypoints)
	for i := range state.Vector {
		state.Vector[i] = float64(i) * 0.125
	}

	path := filepath.Join(t.TempDir(), "state.npz")
	test.That(t, WriteArchive(path, obs, sel, state), test.ShouldBeNil)

	a, err := ReadArchive(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.RefShape, test.ShouldResemble, []int{2, 3, 4})
	test.That(t, a.NumScenes(), test.ShouldEqual, 2)
	test.That(t, a.NumKeypoints(), test.ShouldEqual, 4)
	test.That(t, mat.EqualApprox(a.Sel, sel, 0), test.ShouldBeTrue)
	test.That(t, a.Res, test.ShouldResemble, state.Vector)
	test.That(t, a.ValidMask(), test.ShouldResemble, obs.Valid)

	got, err := a.State()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.NumScenes, test.ShouldEqual, 2)
	test.That(t, got.Pose(1).Translation.X, test.ShouldEqual, state.Vector[0])

	back, err := a.Observations()
	test.That(t, err, test.ShouldBeNil)
	for s := range obs.Points {
		for k := range obs.Points[s] {
			test.That(t, back.Points[s][k].Sub(obs.Points[s][k]).Norm(),
				test.ShouldAlmostEqual, 0, 1e-12)
		}
	}
}

func TestWriteArchiveBadPath(t *testing.T) {
	obs := twoSceneObservations(t)
	sel := BuildSelectionMatrix(obs.Valid)
	state := NewState(obs.NumScenes, obs.NumKeypoints)
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "state.npz")
	err := WriteArchive(path, obs, sel, state)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadArchiveMissingEntries(t *testing.T) {
	_, err := ReadArchive(filepath.Join(t.TempDir(), "missing.npz"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRefArrayLayout(t *testing.T) {
	obs := twoSceneObservations(t)
	ref := obs.RefArray()
	test.That(t, len(ref), test.ShouldEqual, 2*3*4)
	// scene-major, axis-middle, keypoint-minor: ref[s*12 + axis*4 + k]
	test.That(t, ref[0*12+0*4+1], test.ShouldEqual, obs.Points[0][1].X)
	test.That(t, ref[0*12+1*4+2], test.ShouldEqual, obs.Points[0][2].Y)
	test.That(t, ref[1*12+2*4+0], test.ShouldEqual, obs.Points[1][0].Z)

	back, err := ObservationSetFromRef(ref, 2, 4, obs.Valid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Points[1][1], test.ShouldResemble, obs.Points[1][1])
}
