package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

func TestComposeWithIdentityRotation(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: -2, Z: 3}, quat.Number{Real: 1})
	pts := []r3.Vector{{}, {X: 0.5, Y: 0.5, Z: 2}, {X: -4, Y: 0, Z: 0.25}}
	out := TransformPoints(p.Matrix(), pts)
	for i, pt := range pts {
		test.That(t, out[i].X, test.ShouldAlmostEqual, pt.X+1, 1e-12)
		test.That(t, out[i].Y, test.ShouldAlmostEqual, pt.Y-2, 1e-12)
		test.That(t, out[i].Z, test.ShouldAlmostEqual, pt.Z+3, 1e-12)
	}
}

func TestInvertIsExactRigidInverse(t *testing.T) {
	quats := []quat.Number{
		{Real: 1},
		{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)},
		{Real: 0.5, Imag: 0.5, Jmag: 0.5, Kmag: 0.5},
		{Real: math.Cos(0.3), Imag: math.Sin(0.3)},
	}
	for _, q := range quats {
		m := NewPose(r3.Vector{X: 0.2, Y: -1.5, Z: 4}, q).Matrix()
		round := Chain(Invert(m), m)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				want := 0.0
				if i == j {
					want = 1.0
				}
				test.That(t, round.At(i, j), test.ShouldAlmostEqual, want, 1e-12)
			}
		}
	}
}

func TestRotationMatrixKnownRotation(t *testing.T) {
	// 90 degrees about z maps x onto y
	q := quat.Number{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}
	out := NewPose(r3.Vector{}, q).ApplyToPoint(r3.Vector{X: 1})
	test.That(t, out.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, out.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, out.Z, test.ShouldAlmostEqual, 0, 1e-12)
}

func TestRotationMatrixHomogeneousForm(t *testing.T) {
	// a scaled quaternion must produce the same rotation as the unit one
	q := quat.Number{Real: math.Cos(0.7), Jmag: math.Sin(0.7)}
	scaled := quat.Number{Real: 3 * q.Real, Jmag: 3 * q.Jmag}
	ru := RotationMatrix(q)
	rs := RotationMatrix(scaled)
	test.That(t, mat.EqualApprox(ru, rs, 1e-12), test.ShouldBeTrue)

	// near-zero quaternions degrade to the identity instead of blowing up
	rz := RotationMatrix(quat.Number{})
	test.That(t, mat.EqualApprox(rz, mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), 0), test.ShouldBeTrue)
}

func TestChainAssociationOrder(t *testing.T) {
	a := NewPose(r3.Vector{X: 1}, quat.Number{Real: 1}).Matrix()
	rot := NewPose(r3.Vector{}, quat.Number{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}).Matrix()
	// Chain(rot, a) rotates after translating: (0,0,0) -> (1,0,0) -> (0,1,0)
	out := TransformPoints(Chain(rot, a), []r3.Vector{{}})[0]
	test.That(t, out.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, out.Y, test.ShouldAlmostEqual, 1, 1e-12)
	// Chain(a, rot) translates after rotating: (0,0,0) -> (0,0,0) -> (1,0,0)
	out = TransformPoints(Chain(a, rot), []r3.Vector{{}})[0]
	test.That(t, out.X, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, out.Y, test.ShouldAlmostEqual, 0, 1e-12)
}

func TestPoseFromLine(t *testing.T) {
	pose, err := PoseFromLine("1311868164.3 0.1 -0.2 0.3 0 0 0.7071067811865476 0.7071067811865476")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Translation.X, test.ShouldAlmostEqual, 0.1)
	test.That(t, pose.Translation.Y, test.ShouldAlmostEqual, -0.2)
	test.That(t, pose.Translation.Z, test.ShouldAlmostEqual, 0.3)
	// file order is (qx qy qz qw); stored order is (w, x, y, z)
	test.That(t, pose.Rotation.Real, test.ShouldAlmostEqual, 0.7071067811865476)
	test.That(t, pose.Rotation.Kmag, test.ShouldAlmostEqual, 0.7071067811865476)
	test.That(t, pose.Rotation.Imag, test.ShouldAlmostEqual, 0)

	_, err = PoseFromLine("1311868164.3 0.1 -0.2 0.3 0 0 1")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = PoseFromLine("a b c d e f g h")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestQuaternionAlmostEqual(t *testing.T) {
	q := quat.Number{Real: 0.5, Imag: 0.5, Jmag: 0.5, Kmag: 0.5}
	flipped := quat.Number{Real: -0.5, Imag: -0.5, Jmag: -0.5, Kmag: -0.5}
	test.That(t, QuaternionAlmostEqual(q, flipped, 1e-9), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(q, quat.Number{Real: 1}, 1e-9), test.ShouldBeFalse)
}
