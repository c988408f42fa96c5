// Package spatial implements the rigid transform algebra used to relate
// scenes, cameras and the recovered object model. Rotations are carried as
// quaternions on top of gonum's quat.Number; full transforms are 4x4
// homogeneous matrices.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// quatNormEps is the squared-norm threshold below which a quaternion is
// treated as zero rotation rather than divided through.
const quatNormEps = 1e-12

// Pose is a rigid transform expressed as a unit quaternion plus a
// translation. The solver deliberately lets the quaternion drift off unit
// norm during optimization, so everything here must stay well defined for
// non-unit quaternions.
type Pose struct {
	Translation r3.Vector
	Rotation    quat.Number
}

// NewPose returns a pose from a translation and rotation quaternion.
func NewPose(t r3.Vector, q quat.Number) Pose {
	return Pose{Translation: t, Rotation: q}
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// RotationMatrix converts a quaternion to a 3x3 rotation matrix using the
// homogeneous form, which divides by the squared norm. A non-unit quaternion
// therefore still produces a proper rotation; a near-zero quaternion maps to
// the identity.
func RotationMatrix(q quat.Number) *mat.Dense {
	n := q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag
	r := mat.NewDense(3, 3, nil)
	if n < quatNormEps {
		r.Set(0, 0, 1)
		r.Set(1, 1, 1)
		r.Set(2, 2, 1)
		return r
	}
	s := 2.0 / n
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	xs, ys, zs := x*s, y*s, z*s
	wx, wy, wz := w*xs, w*ys, w*zs
	xx, xy, xz := x*xs, x*ys, x*zs
	yy, yz, zz := y*ys, y*zs, z*zs
	r.Set(0, 0, 1-(yy+zz))
	r.Set(0, 1, xy-wz)
	r.Set(0, 2, xz+wy)
	r.Set(1, 0, xy+wz)
	r.Set(1, 1, 1-(xx+zz))
	r.Set(1, 2, yz-wx)
	r.Set(2, 0, xz-wy)
	r.Set(2, 1, yz+wx)
	r.Set(2, 2, 1-(xx+yy))
	return r
}

// Matrix composes the pose into a 4x4 homogeneous transform [R t; 0 1].
func (p Pose) Matrix() *mat.Dense {
	r := RotationMatrix(p.Rotation)
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, r.At(i, j))
		}
	}
	m.Set(0, 3, p.Translation.X)
	m.Set(1, 3, p.Translation.Y)
	m.Set(2, 3, p.Translation.Z)
	m.Set(3, 3, 1)
	return m
}

// ApplyToPoint applies the pose to a single point, R*p + t.
func (p Pose) ApplyToPoint(pt r3.Vector) r3.Vector {
	r := RotationMatrix(p.Rotation)
	return r3.Vector{
		X: r.At(0, 0)*pt.X + r.At(0, 1)*pt.Y + r.At(0, 2)*pt.Z + p.Translation.X,
		Y: r.At(1, 0)*pt.X + r.At(1, 1)*pt.Y + r.At(1, 2)*pt.Z + p.Translation.Y,
		Z: r.At(2, 0)*pt.X + r.At(2, 1)*pt.Y + r.At(2, 2)*pt.Z + p.Translation.Z,
	}
}

// Invert returns the exact rigid inverse (Rt, -Rt*t) of a 4x4 rigid
// transform. The rotation block is transposed, never numerically inverted.
func Invert(m *mat.Dense) *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, m.At(j, i))
		}
	}
	tx, ty, tz := m.At(0, 3), m.At(1, 3), m.At(2, 3)
	for i := 0; i < 3; i++ {
		out.Set(i, 3, -(out.At(i, 0)*tx + out.At(i, 1)*ty + out.At(i, 2)*tz))
	}
	out.Set(3, 3, 1)
	return out
}

// Chain multiplies 4x4 transforms left to right, so Chain(A, B) applied to a
// point is A*(B*p).
func Chain(ms ...*mat.Dense) *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	out.Set(0, 0, 1)
	out.Set(1, 1, 1)
	out.Set(2, 2, 1)
	out.Set(3, 3, 1)
	for _, m := range ms {
		next := mat.NewDense(4, 4, nil)
		next.Mul(out, m)
		out = next
	}
	return out
}

// TransformPoints applies a 4x4 rigid transform to every point in pts.
func TransformPoints(m *mat.Dense, pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, pt := range pts {
		out[i] = r3.Vector{
			X: m.At(0, 0)*pt.X + m.At(0, 1)*pt.Y + m.At(0, 2)*pt.Z + m.At(0, 3),
			Y: m.At(1, 0)*pt.X + m.At(1, 1)*pt.Y + m.At(1, 2)*pt.Z + m.At(1, 3),
			Z: m.At(2, 0)*pt.X + m.At(2, 1)*pt.Y + m.At(2, 2)*pt.Z + m.At(2, 3),
		}
	}
	return out
}

// QuaternionAlmostEqual tests quaternion equality within tolerance, treating
// q and -q as the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) <= tol &&
		math.Abs(a.Imag-b.Imag) <= tol &&
		math.Abs(a.Jmag-b.Jmag) <= tol &&
		math.Abs(a.Kmag-b.Kmag) <= tol
	flipped := math.Abs(a.Real+b.Real) <= tol &&
		math.Abs(a.Imag+b.Imag) <= tol &&
		math.Abs(a.Jmag+b.Jmag) <= tol &&
		math.Abs(a.Kmag+b.Kmag) <= tol
	return same || flipped
}
