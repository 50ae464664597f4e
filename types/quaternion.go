package types

import "math"

// Quat is a rotation quaternion with vector part V and scalar part W.
type Quat struct {
	V Vec3
	W float32
}

// QuatFromAxisAngle returns the rotation by angle radians around axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	half := float64(angle) * 0.5
	return Quat{
		V: axis.Normalize().Mul(float32(math.Sin(half))),
		W: float32(math.Cos(half)),
	}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v + 2w(q x v) + 2q x (q x v)
	t := q.V.Cross(v)
	return v.Add(t.Mul(2 * q.W)).Add(q.V.Mul(2).Cross(t))
}

// Mul composes two rotations; q2 is applied first.
func (q Quat) Mul(q2 Quat) Quat {
	return Quat{
		V: q.V.Cross(q2.V).Add(q2.V.Mul(q.W)).Add(q.V.Mul(q2.W)),
		W: q.W*q2.W - q.V.Dot(q2.V),
	}
}

// Normalize returns the unit quaternion. A zero quaternion maps to the
// identity rotation.
func (q Quat) Normalize() Quat {
	length := float32(math.Sqrt(float64(q.W*q.W + q.V.Dot(q.V))))
	switch {
	case length == 0:
		return Quat{W: 1}
	case math.Abs(float64(1-length)) < floatCmpEpsilon:
		return q
	}
	return Quat{V: q.V.Mul(1 / length), W: q.W / length}
}
